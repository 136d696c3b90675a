package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SummaryMaxRunes bounds the summary text derived from long descriptions
const SummaryMaxRunes = 200

// Record is the full entity behind a relevance hit. Variants resolve their
// display fields once, when decoded.
type Record interface {
	Category() Category
	RecordID() string
	DisplayName() string
	Summary() string
	// Price returns false when the record carries no price
	Price() (float64, bool)
	// Timestamp returns the date used for newest-first ordering
	Timestamp() (time.Time, bool)
}

// resolved holds the display fields computed at decode time
type resolved struct {
	category  Category
	id        string
	name      string
	summary   string
	price     float64
	hasPrice  bool
	timestamp time.Time
	hasTime   bool
}

func (r *resolved) Category() Category { return r.category }

func (r *resolved) RecordID() string { return r.id }

func (r *resolved) DisplayName() string { return r.name }

func (r *resolved) Summary() string { return r.summary }

func (r *resolved) Price() (float64, bool) { return r.price, r.hasPrice }

func (r *resolved) Timestamp() (time.Time, bool) { return r.timestamp, r.hasTime }

// Product is a listed item for sale
type Product struct {
	ID               FlexID        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"short_description,omitempty"`
	Description      string        `json:"description,omitempty"`
	RawPrice         OptionalFloat `json:"price"`
	ImageURL         string        `json:"image_url,omitempty"`
	VendorID         FlexID        `json:"vendor_id,omitempty"`
	Status           string        `json:"status,omitempty"`
	CreatedAt        OptionalTime  `json:"created_at"`
	resolved
}

func (p *Product) resolve() {
	p.resolved = resolved{
		category: CategoryProduct,
		id:       string(p.ID),
		name:     p.Name,
		summary:  firstNonEmpty(p.ShortDescription, truncateRunes(p.Description, SummaryMaxRunes)),
	}
	p.price, p.hasPrice = p.RawPrice.Value, p.RawPrice.Valid
	p.timestamp, p.hasTime = p.CreatedAt.Value, p.CreatedAt.Valid
}

// Profile is a user profile; artists and promoters share it
type Profile struct {
	ID               FlexID       `json:"id"`
	Username         string       `json:"username,omitempty"`
	BusinessName     string       `json:"business_name,omitempty"`
	PublicName       string       `json:"display_name,omitempty"`
	FirstName        string       `json:"first_name,omitempty"`
	LastName         string       `json:"last_name,omitempty"`
	Bio              string       `json:"bio,omitempty"`
	ArtistBiography  string       `json:"artist_biography,omitempty"`
	ProfileImagePath string       `json:"profile_image_path,omitempty"`
	StudioCity       string       `json:"studio_city,omitempty"`
	StudioState      string       `json:"studio_state,omitempty"`
	CreatedAt        OptionalTime `json:"created_at"`
	resolved
}

func (p *Profile) resolve(category Category) {
	fullName := strings.TrimSpace(p.FirstName + " " + p.LastName)
	p.resolved = resolved{
		category: category,
		id:       string(p.ID),
		name:     firstNonEmpty(p.BusinessName, p.PublicName, fullName, p.Username),
		summary:  truncateRunes(firstNonEmpty(p.Bio, p.ArtistBiography), SummaryMaxRunes),
	}
	p.timestamp, p.hasTime = p.CreatedAt.Value, p.CreatedAt.Valid
}

// Article is an editorial post
type Article struct {
	ID                FlexID       `json:"id"`
	Title             string       `json:"title"`
	Slug              string       `json:"slug,omitempty"`
	Excerpt           string       `json:"excerpt,omitempty"`
	Content           string       `json:"content,omitempty"`
	AuthorDisplayName string       `json:"author_display_name,omitempty"`
	PublishedAt       OptionalTime `json:"published_at"`
	CreatedAt         OptionalTime `json:"created_at"`
	resolved
}

func (a *Article) resolve() {
	a.resolved = resolved{
		category: CategoryArticle,
		id:       string(a.ID),
		name:     a.Title,
		summary:  firstNonEmpty(a.Excerpt, truncateRunes(a.Content, SummaryMaxRunes)),
	}
	switch {
	case a.PublishedAt.Valid:
		a.timestamp, a.hasTime = a.PublishedAt.Value, true
	case a.CreatedAt.Valid:
		a.timestamp, a.hasTime = a.CreatedAt.Value, true
	}
}

// Event is a show or fair listing
type Event struct {
	ID               FlexID       `json:"id"`
	Title            string       `json:"title"`
	ShortDescription string       `json:"short_description,omitempty"`
	Description      string       `json:"description,omitempty"`
	VenueName        string       `json:"venue_name,omitempty"`
	VenueCity        string       `json:"venue_city,omitempty"`
	VenueState       string       `json:"venue_state,omitempty"`
	StartDate        OptionalTime `json:"start_date"`
	EndDate          OptionalTime `json:"end_date"`
	CreatedAt        OptionalTime `json:"created_at"`
	resolved
}

func (e *Event) resolve() {
	e.resolved = resolved{
		category: CategoryEvent,
		id:       string(e.ID),
		name:     e.Title,
		summary:  firstNonEmpty(e.ShortDescription, truncateRunes(e.Description, SummaryMaxRunes)),
	}
	switch {
	case e.StartDate.Valid:
		e.timestamp, e.hasTime = e.StartDate.Value, true
	case e.CreatedAt.Valid:
		e.timestamp, e.hasTime = e.CreatedAt.Value, true
	}
}

// DecodeRecord decodes an entity body of the given category. The article
// endpoint wraps its body as {"article": {...}}; both shapes are accepted.
func DecodeRecord(category Category, data []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch category {
	case CategoryProduct:
		var p Product
		if err = json.Unmarshal(data, &p); err == nil {
			p.resolve()
			rec = &p
		}
	case CategoryArtist, CategoryPromoter:
		var p Profile
		if err = json.Unmarshal(data, &p); err == nil {
			p.resolve(category)
			rec = &p
		}
	case CategoryArticle:
		var a Article
		if err = json.Unmarshal(unwrap(data, "article"), &a); err == nil {
			a.resolve()
			rec = &a
		}
	case CategoryEvent:
		var e Event
		if err = json.Unmarshal(data, &e); err == nil {
			e.resolve()
			rec = &e
		}
	default:
		return nil, fmt.Errorf("decode record: unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s record: %w", category, err)
	}
	if rec.RecordID() == "" {
		return nil, fmt.Errorf("decode %s record: missing id", category)
	}
	return rec, nil
}

func unwrap(data []byte, key string) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return data
	}
	inner, ok := envelope[key]
	if !ok || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		return data
	}
	return inner
}

// FlexID is an identifier that may arrive as a JSON number or string
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// OptionalFloat is a number that may arrive as a numeric string, empty or null.
// Non-finite values decode as absent.
type OptionalFloat struct {
	Value float64
	Valid bool
}

func (f *OptionalFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = OptionalFloat{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = OptionalFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	// NaN and infinities parse but have no order; treat them as absent
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*f = OptionalFloat{}
		return nil
	}
	*f = OptionalFloat{Value: v, Valid: true}
	return nil
}

func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// OptionalTime is a timestamp in RFC 3339 or one of the SQL date layouts
type OptionalTime struct {
	Value time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *OptionalTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*t = OptionalTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, strings.TrimSpace(*s)); err == nil {
			*t = OptionalTime{Value: parsed, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", *s)
}

func (t OptionalTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value.Format(time.RFC3339Nano))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
