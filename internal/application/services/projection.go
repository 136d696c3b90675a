package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// Project returns the results a view shows: one category, or every category
// in precedence order, sorted by the view's sort mode. It never modifies rs
// and always returns a fresh slice. Sorting is stable, so ties keep their
// relevance order. Records without a price or date sort last in every direction.
func Project(rs *entities.ResultSet, vs entities.ViewState) []entities.EnrichedResult {
	out := []entities.EnrichedResult{}
	if rs == nil {
		return out
	}

	if vs.Category == entities.All || vs.Category == "" {
		for _, c := range entities.AllCategories() {
			out = append(out, rs.Results(c)...)
		}
	} else {
		out = append(out, rs.Results(entities.Category(vs.Category))...)
	}

	if less := lessFor(vs.Sort, out); less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

// lessFor returns nil for relevance order, which is the input order
func lessFor(mode entities.SortMode, results []entities.EnrichedResult) func(i, j int) bool {
	switch mode {
	case entities.SortNewest:
		return func(i, j int) bool {
			ti, oki := timestampOf(results[i])
			tj, okj := timestampOf(results[j])
			if oki != okj {
				return oki
			}
			return oki && ti.After(tj)
		}
	case entities.SortPriceAsc, entities.SortPriceDesc:
		desc := mode == entities.SortPriceDesc
		return func(i, j int) bool {
			pi, oki := priceOf(results[i])
			pj, okj := priceOf(results[j])
			if oki != okj {
				return oki
			}
			if !oki {
				return false
			}
			if desc {
				return pi > pj
			}
			return pi < pj
		}
	case entities.SortNameAsc:
		return func(i, j int) bool {
			return strings.ToLower(nameOf(results[i])) < strings.ToLower(nameOf(results[j]))
		}
	}
	return nil
}

func priceOf(r entities.EnrichedResult) (float64, bool) {
	if r.Record == nil {
		return 0, false
	}
	price, ok := r.Record.Price()
	if !ok || math.IsNaN(price) {
		return 0, false
	}
	return price, true
}

func timestampOf(r entities.EnrichedResult) (time.Time, bool) {
	if r.Record == nil {
		return time.Time{}, false
	}
	return r.Record.Timestamp()
}

func nameOf(r entities.EnrichedResult) string {
	if r.Record == nil {
		return ""
	}
	return r.Record.DisplayName()
}
