package assistant

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// categorySynonyms folds common variants onto the canonical category names
// used across budgets and expenses. Values are canonical and never appear as
// keys, so normalization is idempotent.
var categorySynonyms = map[string]string{
	"grocery":        "groceries",
	"supermarket":    "groceries",
	"food":           "groceries",
	"transportation": "transport",
	"commute":        "transport",
	"dining":         "restaurants",
	"restaurant":     "restaurants",
	"eating out":     "restaurants",
	"subscription":   "subscriptions",
	"utility":        "utilities",
	"entertainments": "entertainment",
}

// NormalizeCategory lowercases, NFKC-normalizes and whitespace-collapses a
// category name, then folds known synonyms onto their canonical form.
func NormalizeCategory(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = collapseSpaces(s)
	if canonical, ok := categorySynonyms[s]; ok {
		return canonical
	}
	return s
}

// categoryStopWords are filler tokens stripped from extracted category
// candidates. Period vocabulary is included so a phrase like "on groceries so
// far this month" reduces to just "groceries".
var categoryStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {}, "me": {}, "i": {}, "am": {},
	"is": {}, "was": {}, "are": {}, "did": {}, "do": {}, "does": {},
	"have": {}, "has": {}, "had": {}, "get": {}, "got": {},
	"with": {}, "without": {}, "about": {}, "any": {}, "some": {},
	"how": {}, "much": {}, "many": {}, "what": {}, "whats": {},
	"this": {}, "that": {}, "in": {}, "on": {}, "for": {}, "of": {},
	"to": {}, "so": {}, "far": {}, "and": {}, "or": {}, "all": {},
	"money": {}, "total": {}, "overall": {},
	"spent": {}, "spend": {}, "spending": {},
	"expense": {}, "expenses": {}, "cost": {}, "costs": {},
	"budget": {}, "budgets": {}, "status": {},
	"week": {}, "weeks": {}, "month": {}, "months": {},
	"quarter": {}, "quarters": {}, "year": {}, "years": {},
	"half": {}, "day": {}, "days": {},
	"last": {}, "previous": {}, "current": {},
	"left": {}, "remaining": {}, "track": {},
}

// Extraction patterns, tried in order. Budget-shaped phrasings outrank
// spend-shaped ones so "over budget on groceries" never yields "budget".
var categoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:over|under)\s+budget\s+(?:on|for)\s+([a-z][a-z\- ]*)`),
	regexp.MustCompile(`budget\s+(?:for|on|of)\s+([a-z][a-z\- ]*)`),
	regexp.MustCompile(`(?:my\s+)?([a-z][a-z\- ]*?)\s+budget\b`),
	regexp.MustCompile(`spen[dt]\s+(?:money\s+)?(?:on|for)\s+([a-z][a-z\- ]*)`),
	regexp.MustCompile(`\b(?:on|for)\s+([a-z][a-z\- ]*)`),
}

// ExtractCategory pulls a category name out of period-stripped query text.
// It never guesses: when no pattern yields a plausible residue after
// stop-word stripping, it reports false.
func ExtractCategory(text string) (string, bool) {
	for i, re := range categoryPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := m[1]
		// The "X budget" form must not swallow over/under qualifiers.
		if i == 2 && containsToken(candidate, "over", "under") {
			continue
		}
		cleaned := stripStopWords(candidate)
		if len(cleaned) < 2 {
			continue
		}
		return NormalizeCategory(cleaned), true
	}
	return "", false
}

func stripStopWords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := categoryStopWords[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func containsToken(s string, tokens ...string) bool {
	for _, f := range strings.Fields(s) {
		for _, tok := range tokens {
			if f == tok {
				return true
			}
		}
	}
	return false
}
