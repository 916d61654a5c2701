package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

// SuggestionStore is the persistence surface for learned description to
// category mappings.
type SuggestionStore interface {
	CategoryMappingFor(ctx context.Context, userID int64, pattern string) (string, error)
	UpsertCategoryMapping(ctx context.Context, userID int64, pattern, category, source string) error
	MostFrequentCategory(ctx context.Context, userID int64) (string, error)
}

// Suggestion is a category guess for a new expense, with a confidence
// grade and a short human-readable reason.
type Suggestion struct {
	Category   string  `json:"suggested_category,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// keywordRules maps merchant and description tokens onto categories. The
// fallback when the user has no learned mapping for the description.
var keywordRules = []struct {
	tokens   []string
	category string
}{
	{[]string{"uber", "lyft", "taxi"}, "transport"},
	{[]string{"aldi", "lidl", "tesco", "market", "grocery", "supermarket"}, "groceries"},
	{[]string{"amazon", "ikea", "decathlon"}, "shopping"},
	{[]string{"netflix", "spotify", "youtube", "prime", "disney"}, "subscriptions"},
	{[]string{"pizza", "burger", "cafe", "restaurant", "bar"}, "restaurants"},
	{[]string{"electricity", "water", "gas", "utility"}, "utilities"},
	{[]string{"rent", "mortgage"}, "housing"},
}

// SuggestionService guesses expense categories from the user's own history
// first and generic keyword rules second.
type SuggestionService struct {
	store SuggestionStore
	log   *applog.Logger
}

func NewSuggestionService(store SuggestionStore, logger *applog.Logger) *SuggestionService {
	return &SuggestionService{
		store: store,
		log:   logger.WithComponent(applog.ComponentSuggest),
	}
}

// SuggestCategory proposes a category for an expense description. Lookup
// order: the user's learned mappings, then keyword rules, then the user's
// most frequent category. An unmatchable description is not an error; it
// yields an empty suggestion with zero confidence.
func (s *SuggestionService) SuggestCategory(ctx context.Context, userID int64, description string) (Suggestion, error) {
	key := normalizePattern(description)
	if key == "" {
		return Suggestion{Rationale: "empty description"}, nil
	}

	category, err := s.store.CategoryMappingFor(ctx, userID, key)
	switch {
	case err == nil:
		return Suggestion{Category: category, Confidence: 0.95, Rationale: "based on your past choice"}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return Suggestion{}, fmt.Errorf("lookup mapping: %w", err)
	}

	padded := " " + key + " "
	for _, rule := range keywordRules {
		for _, token := range rule.tokens {
			if strings.Contains(padded, " "+token+" ") {
				return Suggestion{
					Category:   rule.category,
					Confidence: 0.7,
					Rationale:  fmt.Sprintf("matched keyword %q", token),
				}, nil
			}
		}
	}

	category, err = s.store.MostFrequentCategory(ctx, userID)
	switch {
	case err == nil:
		return Suggestion{Category: category, Confidence: 0.4, Rationale: "your most frequent category"}, nil
	case errors.Is(err, storage.ErrNotFound):
		return Suggestion{Rationale: "no match found"}, nil
	default:
		return Suggestion{}, fmt.Errorf("most frequent category: %w", err)
	}
}

// Learn records that the user filed this description under this category,
// so the next SuggestCategory for the same description returns it.
func (s *SuggestionService) Learn(ctx context.Context, userID int64, description, category string) error {
	key := normalizePattern(description)
	category = strings.ToLower(strings.TrimSpace(category))
	if key == "" || category == "" {
		return nil
	}
	if err := s.store.UpsertCategoryMapping(ctx, userID, key, category, "expense"); err != nil {
		return fmt.Errorf("learn mapping: %w", err)
	}
	return nil
}

// normalizePattern reduces a description to the lookup key: lowercase with
// collapsed whitespace.
func normalizePattern(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
