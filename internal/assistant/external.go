package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// Completer produces a raw model completion for a prompt. Implemented by the
// llm package; kept minimal so tests can stub it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// classifyPromptTemplate constrains the model to a single JSON object. The
// intent vocabulary is spelled out verbatim so alias folding stays a repair
// step, not a dependency.
const classifyPromptTemplate = `You are a classifier for a personal finance tracker.
Classify the user's question into exactly one intent and extract parameters.

Valid intents:
spend_in_period, spend_in_category_period, income_in_period,
income_expense_overview_period, budget_status_period,
budget_status_category_period, highest_budget_period, lowest_budget_period,
top_category_in_period, on_track_quarter, unknown

Valid period values: week, last_week, month, last_month, quarter,
last_quarter, half_year, last_half_year, year, last_year.

Respond with ONLY a JSON object, no prose, no code fences:
{"intent": "<intent>", "params": {"period": "...", "category": "...", "source": "...", "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}}

Omit params you cannot extract. Question: %q`

// intentAliases folds loose model output onto the closed intent vocabulary.
var intentAliases = map[string]Intent{
	"spend":                   IntentSpendInPeriod,
	"spend_period":            IntentSpendInPeriod,
	"spending_in_period":      IntentSpendInPeriod,
	"spend_in_category":       IntentSpendInCategoryPeriod,
	"spend_category_period":   IntentSpendInCategoryPeriod,
	"income":                  IntentIncomeInPeriod,
	"income_period":           IntentIncomeInPeriod,
	"overview":                IntentIncomeExpenseOverview,
	"income_expense_overview": IntentIncomeExpenseOverview,
	"income_vs_expenses":      IntentIncomeExpenseOverview,
	"budget_status":           IntentBudgetStatusPeriod,
	"budget":                  IntentBudgetStatusPeriod,
	"budget_status_category":  IntentBudgetStatusCategoryPeriod,
	"highest_budget":          IntentHighestBudgetPeriod,
	"lowest_budget":           IntentLowestBudgetPeriod,
	"top_category":            IntentTopCategoryInPeriod,
	"on_track":                IntentOnTrackQuarter,
}

// ExternalClassifier asks a language model to classify queries the local
// rules could not. It never returns an error: any failure, malformed output
// included, degrades to the unknown intent.
type ExternalClassifier struct {
	completer Completer
	log       *applog.Logger
}

func NewExternalClassifier(completer Completer, log *applog.Logger) *ExternalClassifier {
	return &ExternalClassifier{completer: completer, log: log.WithComponent(applog.ComponentLLM)}
}

// Classify sends the query to the model and parses the structured reply.
func (e *ExternalClassifier) Classify(ctx context.Context, message string) (Intent, Params) {
	raw, err := e.completer.Complete(ctx, fmt.Sprintf(classifyPromptTemplate, message))
	if err != nil {
		e.log.WarnContext(ctx, "external classification failed", applog.FieldError, err.Error())
		return IntentUnknown, Params{}
	}
	intent, params, err := parseIntentJSON(raw)
	if err != nil {
		e.log.WarnContext(ctx, "unparseable classifier output", applog.FieldError, err.Error())
		return IntentUnknown, Params{}
	}
	return intent, params
}

type intentPayload struct {
	Intent string `json:"intent"`
	Params struct {
		Period    string `json:"period"`
		Category  string `json:"category"`
		Source    string `json:"source"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	} `json:"params"`
}

// parseIntentJSON leniently decodes model output: code fences are stripped,
// only the outermost brace pair is considered, and a single-quoted object
// gets one repair attempt.
func parseIntentJSON(raw string) (Intent, Params, error) {
	s := stripCodeFences(raw)
	open := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if open < 0 || last <= open {
		return IntentUnknown, Params{}, fmt.Errorf("no JSON object in output")
	}
	s = s[open : last+1]

	var payload intentPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		repaired := strings.ReplaceAll(s, "'", `"`)
		if err2 := json.Unmarshal([]byte(repaired), &payload); err2 != nil {
			return IntentUnknown, Params{}, fmt.Errorf("decode classifier output: %w", err)
		}
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(payload.Intent)))
	if folded, ok := intentAliases[string(intent)]; ok {
		intent = folded
	}
	if !validIntent(intent) {
		intent = IntentUnknown
	}

	params := Params{
		Period:   strings.TrimSpace(payload.Params.Period),
		Category: NormalizeCategory(payload.Params.Category),
		Source:   strings.TrimSpace(strings.ToLower(payload.Params.Source)),
	}
	if t, ok := parseClassifierDate(payload.Params.StartDate); ok {
		start := dayStart(t)
		params.Start = &start
	}
	if t, ok := parseClassifierDate(payload.Params.EndDate); ok {
		end := dayEnd(t)
		params.End = &end
	}
	return intent, params, nil
}

func parseClassifierDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
