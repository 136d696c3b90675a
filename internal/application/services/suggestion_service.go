package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/zatekoja/brakebee-search/internal/domain/entities"
)

// MinSuggestionRunes is the shortest input that produces suggestions
const MinSuggestionRunes = 2

const suggestionLimit = 8

// Suggestion is one autocomplete entry
type Suggestion struct {
	Text     string            `json:"text"`
	Category entities.Category `json:"category"`
	ID       string            `json:"id"`
}

var suggestionQuotas = []struct {
	category entities.Category
	max      int
}{
	{entities.CategoryProduct, 3},
	{entities.CategoryArtist, 2},
	{entities.CategoryArticle, 2},
}

// SuggestionService produces search-as-you-type suggestions
type SuggestionService struct {
	aggregator Aggregator
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(aggregator Aggregator) *SuggestionService {
	return &SuggestionService{aggregator: aggregator}
}

// Suggest returns up to 3 product, 2 artist and 2 article names matching text
func (s *SuggestionService) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinSuggestionRunes {
		return []Suggestion{}, nil
	}

	categories := make([]entities.Category, 0, len(suggestionQuotas))
	for _, q := range suggestionQuotas {
		categories = append(categories, q.category)
	}

	rs, err := s.aggregator.Aggregate(ctx, entities.NewSearchQuery(text, categories, suggestionLimit))
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, 7)
	for _, q := range suggestionQuotas {
		n := 0
		for _, r := range rs.Results(q.category) {
			if n == q.max {
				break
			}
			if r.Record == nil || strings.TrimSpace(r.Record.DisplayName()) == "" {
				continue
			}
			suggestions = append(suggestions, Suggestion{
				Text:     r.Record.DisplayName(),
				Category: r.Category,
				ID:       r.ID,
			})
			n++
		}
	}
	return suggestions, nil
}
