package entities

import (
	"fmt"
	"strings"
)

// CategoryFilter selects one category of a result set, or all of them
type CategoryFilter string

// All selects every category
const All CategoryFilter = "all"

// FilterFor returns the filter that selects only c
func FilterFor(c Category) CategoryFilter {
	return CategoryFilter(c)
}

// SortMode orders a projected result list
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortNewest    SortMode = "newest"
	SortPriceAsc  SortMode = "price_asc"
	SortPriceDesc SortMode = "price_desc"
	SortNameAsc   SortMode = "name_asc"
)

// ViewState is the user's current category selection and sort order
type ViewState struct {
	Category CategoryFilter `json:"category"`
	Sort     SortMode       `json:"sort"`
}

// DefaultViewState shows all categories in relevance order
func DefaultViewState() ViewState {
	return ViewState{Category: All, Sort: SortRelevance}
}

// ParseCategoryFilter accepts "all", an empty string, or a category name
func ParseCategoryFilter(s string) (CategoryFilter, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == string(All) {
		return All, nil
	}
	c, err := ParseCategory(name)
	if err != nil {
		return "", err
	}
	return FilterFor(c), nil
}

// ParseSortMode accepts the sort names used by the storefront; empty means relevance
func ParseSortMode(s string) (SortMode, error) {
	mode := SortMode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortNewest, SortPriceAsc, SortPriceDesc, SortNameAsc:
		return mode, nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// ParseViewState parses both halves of a view from request parameters
func ParseViewState(category, sort string) (ViewState, error) {
	filter, err := ParseCategoryFilter(category)
	if err != nil {
		return ViewState{}, err
	}
	mode, err := ParseSortMode(sort)
	if err != nil {
		return ViewState{}, err
	}
	return ViewState{Category: filter, Sort: mode}, nil
}
