package entities

import (
	"strings"
)

// DefaultSearchLimit is used when a query is built without a positive limit
const DefaultSearchLimit = 20

// SearchQuery is one user search. It is a value type and never mutated after construction.
type SearchQuery struct {
	Text       string
	Categories []Category
	Limit      int
	UserID     string
}

// NewSearchQuery builds a query; no categories means all of them.
func NewSearchQuery(text string, categories []Category, limit int) SearchQuery {
	if len(categories) == 0 {
		categories = AllCategories()
	} else {
		categories = append([]Category(nil), categories...)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return SearchQuery{
		Text:       strings.TrimSpace(text),
		Categories: categories,
		Limit:      limit,
	}
}

// WithUser returns a copy of q tagged with the searching user
func (q SearchQuery) WithUser(userID string) SearchQuery {
	q.Categories = append([]Category(nil), q.Categories...)
	q.UserID = userID
	return q
}

// IsEmpty reports whether the query has no searchable text
func (q SearchQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// RequestedCategories returns the query's categories. A query with none,
// including one built as a literal, requests every category.
func (q SearchQuery) RequestedCategories() []Category {
	if len(q.Categories) == 0 {
		return AllCategories()
	}
	return q.Categories
}

// Requests reports whether c is one of the query's categories
func (q SearchQuery) Requests(c Category) bool {
	for _, want := range q.RequestedCategories() {
		if want == c {
			return true
		}
	}
	return false
}

// RelevanceHit is one ranked id returned by a relevance source
type RelevanceHit struct {
	ID        string   `json:"id"`
	Relevance float64  `json:"relevance"`
	Category  Category `json:"category"`
	Reason    string   `json:"reason,omitempty"`
}

// EnrichedResult is a relevance hit joined with its full record
type EnrichedResult struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Relevance   float64  `json:"relevance"`
	Reason      string   `json:"reason,omitempty"`
	Record      Record   `json:"record,omitempty"`
	FetchFailed bool     `json:"-"`
}

// ResultSet holds the enriched results of one aggregation, per category in
// relevance order. Every requested category has an entry, possibly empty.
// A ResultSet is not modified after it has been returned.
type ResultSet struct {
	Query         SearchQuery
	ByCategory    map[Category][]EnrichedResult
	FailedFetches int
}

// NewResultSet creates an empty set with an entry for each requested category
func NewResultSet(q SearchQuery) *ResultSet {
	categories := q.RequestedCategories()
	rs := &ResultSet{
		Query:      q,
		ByCategory: make(map[Category][]EnrichedResult, len(categories)),
	}
	for _, c := range categories {
		rs.ByCategory[c] = []EnrichedResult{}
	}
	return rs
}

// Results returns the results for one category
func (rs *ResultSet) Results(c Category) []EnrichedResult {
	if rs == nil {
		return nil
	}
	return rs.ByCategory[c]
}

// Counts returns the number of results per category
func (rs *ResultSet) Counts() map[Category]int {
	counts := make(map[Category]int)
	if rs == nil {
		return counts
	}
	for c, results := range rs.ByCategory {
		counts[c] = len(results)
	}
	return counts
}

// Total returns the number of results across all categories
func (rs *ResultSet) Total() int {
	if rs == nil {
		return 0
	}
	total := 0
	for _, results := range rs.ByCategory {
		total += len(results)
	}
	return total
}

// IsEmpty reports whether no category holds any result
func (rs *ResultSet) IsEmpty() bool {
	return rs.Total() == 0
}
