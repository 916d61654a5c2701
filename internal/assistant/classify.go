package assistant

import (
	"regexp"
	"strings"
	"time"
)

// Intent identifies what a financial query is asking for.
type Intent string

const (
	IntentSpendInPeriod              Intent = "spend_in_period"
	IntentSpendInCategoryPeriod      Intent = "spend_in_category_period"
	IntentIncomeInPeriod             Intent = "income_in_period"
	IntentIncomeExpenseOverview      Intent = "income_expense_overview_period"
	IntentBudgetStatusPeriod         Intent = "budget_status_period"
	IntentBudgetStatusCategoryPeriod Intent = "budget_status_category_period"
	IntentHighestBudgetPeriod        Intent = "highest_budget_period"
	IntentLowestBudgetPeriod         Intent = "lowest_budget_period"
	IntentTopCategoryInPeriod        Intent = "top_category_in_period"
	IntentOnTrackQuarter             Intent = "on_track_quarter"
	IntentUnknown                    Intent = "unknown"
)

func validIntent(i Intent) bool {
	switch i {
	case IntentSpendInPeriod, IntentSpendInCategoryPeriod, IntentIncomeInPeriod,
		IntentIncomeExpenseOverview, IntentBudgetStatusPeriod, IntentBudgetStatusCategoryPeriod,
		IntentHighestBudgetPeriod, IntentLowestBudgetPeriod, IntentTopCategoryInPeriod,
		IntentOnTrackQuarter:
		return true
	}
	return false
}

// Params carries the slots a classifier extracted from the query. Period
// holds a canonical period key (or "last_N_days"); Start/End are explicit
// dates an external classifier may supply.
type Params struct {
	Period   string
	Category string
	Source   string
	Start    *time.Time
	End      *time.Time
}

// Merge returns p with empty slots filled from other. Values already present
// in p always win.
func (p Params) Merge(other Params) Params {
	if p.Period == "" {
		p.Period = other.Period
	}
	if p.Category == "" {
		p.Category = other.Category
	}
	if p.Source == "" {
		p.Source = other.Source
	}
	if p.Start == nil {
		p.Start = other.Start
	}
	if p.End == nil {
		p.End = other.End
	}
	return p
}

var (
	possessiveRe   = regexp.MustCompile(`['\x{2019}]s\b`)
	punctuationRe  = regexp.MustCompile(`[?!.,;:"]+`)
	incomeSourceRe = regexp.MustCompile(`\bincome\s+(?:from|via)\s+([a-z][a-z\- ]*)`)
)

// normalizeText lowercases, strips possessives and sentence punctuation, and
// collapses whitespace. All matching downstream assumes this form.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = possessiveRe.ReplaceAllString(s, "")
	s = punctuationRe.ReplaceAllString(s, " ")
	return collapseSpaces(s)
}

func hasAny(text string, words ...string) bool {
	padded := " " + text + " "
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

// Classify applies the local rule cascade to a raw query. Rules run in a
// fixed order; the first that fires decides the intent. It is pure and
// deterministic: same text in, same intent and params out.
func Classify(text string) (Intent, Params) {
	n := normalizeText(text)
	periodKey, stripped := StripPeriodPhrase(n)
	params := Params{Period: periodKey}

	income := hasAny(stripped, "income", "earn", "earned", "earning", "earnings", "salary", "received")
	expense := hasAny(stripped, "spend", "spent", "spending", "expense", "expenses", "cost", "costs")
	compare := hasAny(stripped, "vs", "versus", "compare", "compared", "net", "balance", "overview")
	budget := hasAny(stripped, "budget", "budgets")
	budgetish := budget || hasAny(stripped, "over", "under", "remaining", "left", "status")
	superHigh := hasAny(stripped, "highest", "biggest", "largest", "most", "top", "maximum", "max")
	superLow := hasAny(stripped, "lowest", "smallest", "least", "minimum", "min")
	onTrack := strings.Contains(" "+stripped+" ", " on track ")
	quarterish := periodKey == PeriodQuarter || periodKey == PeriodLastQuarter || hasAny(n, "quarter")

	// 1. Income alongside expenses or an explicit comparison: overview.
	// Comparison words on their own only count when no spend vocabulary is
	// present, so "overview of my spending" stays a spend question.
	if (income && (expense || compare)) || (compare && !expense) {
		return IntentIncomeExpenseOverview, params
	}

	// 2. Income on its own.
	if income && !budget {
		if m := incomeSourceRe.FindStringSubmatch(stripped); m != nil {
			if src := stripStopWords(m[1]); len(src) >= 2 {
				params.Source = src
			}
		}
		return IntentIncomeInPeriod, params
	}

	// 3. Budget extremum outranks generic budget status.
	if budget && (superHigh || superLow) {
		if superLow && !superHigh {
			return IntentLowestBudgetPeriod, params
		}
		return IntentHighestBudgetPeriod, params
	}

	// 4. Generic budget status. "on track" alone is not budget vocabulary
	// here, otherwise the quarter pacing rule below would be unreachable.
	if budget || (budgetish && !onTrack) {
		if cat, ok := ExtractCategory(stripped); ok {
			params.Category = cat
			return IntentBudgetStatusCategoryPeriod, params
		}
		return IntentBudgetStatusPeriod, params
	}

	// 5. Superlative about spending: top category.
	if superHigh && (expense || hasAny(stripped, "category", "categories")) {
		return IntentTopCategoryInPeriod, params
	}

	// 6. Plain spend, with or without a category.
	if expense {
		if cat, ok := ExtractCategory(stripped); ok {
			params.Category = cat
			return IntentSpendInCategoryPeriod, params
		}
		return IntentSpendInPeriod, params
	}

	// 7. Quarter pacing check.
	if onTrack && quarterish {
		params.Period = PeriodQuarter
		if periodKey == PeriodLastQuarter {
			params.Period = PeriodLastQuarter
		}
		return IntentOnTrackQuarter, params
	}

	return IntentUnknown, params
}
