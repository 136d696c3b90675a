package entities

import (
	"fmt"
	"strings"
)

// Category identifies one kind of marketplace entity a search can return
type Category string

const (
	CategoryProduct  Category = "product"
	CategoryArtist   Category = "artist"
	CategoryPromoter Category = "promoter"
	CategoryArticle  Category = "article"
	CategoryEvent    Category = "event"
)

// AllCategories returns every category in display precedence order.
func AllCategories() []Category {
	return []Category{
		CategoryProduct,
		CategoryArtist,
		CategoryPromoter,
		CategoryArticle,
		CategoryEvent,
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryProduct, CategoryArtist, CategoryPromoter, CategoryArticle, CategoryEvent:
		return true
	}
	return false
}

// Plural returns the wire name used by the ranking service and the index collections
func (c Category) Plural() string {
	return string(c) + "s"
}

// Rank is the position of c in precedence order, or -1 when unknown
func (c Category) Rank() int {
	for i, known := range AllCategories() {
		if known == c {
			return i
		}
	}
	return -1
}

// ParseCategory accepts singular or plural names in any case.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	c := Category(name)
	if c.Valid() {
		return c, nil
	}
	if trimmed := Category(strings.TrimSuffix(name, "s")); trimmed.Valid() {
		return trimmed, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ParseCategories parses a list of names, dropping duplicates while keeping order
func ParseCategories(names []string) ([]Category, error) {
	out := make([]Category, 0, len(names))
	seen := make(map[Category]bool, len(names))
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
