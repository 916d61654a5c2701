package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// Aggregator is the read-side the assistant needs from storage. All windows
// are inclusive on both ends.
type Aggregator interface {
	SumExpenses(ctx context.Context, userID int64, start, end time.Time, category string) (decimal.Decimal, error)
	SumIncome(ctx context.Context, userID int64, start, end time.Time, source string) (decimal.Decimal, error)
	TopExpenseCategory(ctx context.Context, userID int64, start, end time.Time) (*core.CategoryTotal, error)
	BudgetsFor(ctx context.Context, userID int64, period, category string, createdBefore time.Time) ([]core.Budget, error)
}

// Action is a UI suggestion attached to a reply.
type Action struct {
	Type   string         `json:"type"`
	Label  string         `json:"label"`
	Params map[string]any `json:"params,omitempty"`
}

// Reply is the assistant's answer to a query.
type Reply struct {
	Reply   string   `json:"reply"`
	Actions []Action `json:"actions,omitempty"`
}

// errMissingCategory signals a category-shaped intent dispatched without a
// category slot. It drives the merge-then-retry policy and never escapes
// Answer.
var errMissingCategory = errors.New("missing category")

// Service answers natural-language financial queries. Local rules always run
// first; the external classifier, when configured, is consulted only for
// queries the rules could not place.
type Service struct {
	agg      Aggregator
	external *ExternalClassifier
	log      *applog.Logger
	now      func() time.Time
}

// NewService builds the assistant. external may be nil, which disables the
// model fallback entirely.
func NewService(agg Aggregator, external *ExternalClassifier, logger *applog.Logger) *Service {
	return &Service{
		agg:      agg,
		external: external,
		log:      logger.WithComponent(applog.ComponentAssistant),
		now:      time.Now,
	}
}

// Answer classifies the message, resolves its time window and composes a
// reply from aggregated data. Classification failures degrade to a help
// reply; only storage errors surface to the caller.
func (s *Service) Answer(ctx context.Context, userID int64, message string) (Reply, error) {
	intent, params := Classify(message)
	s.log.DebugContext(ctx, "query classified",
		applog.FieldUserID, userID, applog.FieldIntent, string(intent), applog.FieldPeriod, params.Period)

	if intent == IntentUnknown && s.external != nil {
		extIntent, extParams := s.external.Classify(ctx, message)
		if extIntent != IntentUnknown {
			reply, err := s.dispatch(ctx, userID, extIntent, extParams, message)
			if errors.Is(err, errMissingCategory) {
				// Second pass with locally extracted slots filling the gaps.
				reply, err = s.dispatch(ctx, userID, extIntent, extParams.Merge(params), message)
			}
			switch {
			case errors.Is(err, errMissingCategory):
				return s.missingCategoryReply(), nil
			case err != nil:
				return Reply{}, err
			}
			return reply, nil
		}
	}

	if intent == IntentUnknown {
		return s.helpReply(), nil
	}

	reply, err := s.dispatch(ctx, userID, intent, params, message)
	if errors.Is(err, errMissingCategory) {
		return s.missingCategoryReply(), nil
	}
	return reply, err
}

func (s *Service) dispatch(ctx context.Context, userID int64, intent Intent, params Params, message string) (Reply, error) {
	window := s.resolveRange(message, params)

	switch intent {
	case IntentSpendInPeriod:
		return s.answerSpend(ctx, userID, window, "")
	case IntentSpendInCategoryPeriod:
		if params.Category == "" {
			return Reply{}, errMissingCategory
		}
		return s.answerSpend(ctx, userID, window, NormalizeCategory(params.Category))
	case IntentIncomeInPeriod:
		return s.answerIncome(ctx, userID, window, params.Source)
	case IntentIncomeExpenseOverview:
		return s.answerOverview(ctx, userID, window)
	case IntentBudgetStatusPeriod:
		return s.answerBudgetStatus(ctx, userID, window)
	case IntentBudgetStatusCategoryPeriod:
		if params.Category == "" {
			return Reply{}, errMissingCategory
		}
		return s.answerCategoryBudget(ctx, userID, window, NormalizeCategory(params.Category))
	case IntentHighestBudgetPeriod:
		return s.answerBudgetExtremum(ctx, userID, window, true)
	case IntentLowestBudgetPeriod:
		return s.answerBudgetExtremum(ctx, userID, window, false)
	case IntentTopCategoryInPeriod:
		return s.answerTopCategory(ctx, userID, window)
	case IntentOnTrackQuarter:
		return s.answerOnTrack(ctx, userID)
	}
	return s.helpReply(), nil
}

// resolveRange turns query text plus classifier params into a concrete
// window. Phrases in the text always beat classifier-supplied dates: a
// canonical period phrase first, then free-form date forms, then explicit
// start/end params, then the period key, and finally the current month.
func (s *Service) resolveRange(message string, params Params) Range {
	now := s.now().UTC()
	n := normalizeText(message)

	if key, ok := PeriodFromText(n); ok {
		return RangeForKey(key, now)
	}
	if r, ok := ParseFreeformRange(n, now); ok {
		return r
	}
	if params.Start != nil && params.End != nil && !params.End.Before(*params.Start) {
		return Range{
			Start: *params.Start,
			End:   *params.End,
			Label: fmt.Sprintf("from %s to %s", params.Start.Format("Jan 2, 2006"), params.End.Format("Jan 2, 2006")),
		}
	}
	if params.Period != "" {
		return RangeForKey(params.Period, now)
	}
	return RangeForKey(PeriodMonth, now)
}

func (s *Service) answerSpend(ctx context.Context, userID int64, window Range, category string) (Reply, error) {
	total, err := s.agg.SumExpenses(ctx, userID, window.Start, window.End, category)
	if err != nil {
		return Reply{}, fmt.Errorf("sum expenses: %w", err)
	}

	var text string
	if category == "" {
		text = fmt.Sprintf("You spent %s %s.", core.FormatAmount(total), window.Label)
	} else {
		text = fmt.Sprintf("You spent %s on %s %s.", core.FormatAmount(total), category, window.Label)
	}

	action := navigateAction("See expenses", "/expenses", window)
	if category != "" {
		action.Params["category"] = category
	}
	return Reply{Reply: text, Actions: []Action{action}}, nil
}

func (s *Service) answerIncome(ctx context.Context, userID int64, window Range, source string) (Reply, error) {
	total, err := s.agg.SumIncome(ctx, userID, window.Start, window.End, source)
	if err != nil {
		return Reply{}, fmt.Errorf("sum income: %w", err)
	}

	text := fmt.Sprintf("You received %s in income %s.", core.FormatAmount(total), window.Label)
	if source != "" {
		text = fmt.Sprintf("You received %s from %s %s.", core.FormatAmount(total), source, window.Label)
	}

	action := navigateAction("See income", "/incomes", window)
	if source != "" {
		action.Params["source"] = source
	}
	return Reply{Reply: text, Actions: []Action{action}}, nil
}

func (s *Service) answerOverview(ctx context.Context, userID int64, window Range) (Reply, error) {
	income, err := s.agg.SumIncome(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Reply{}, fmt.Errorf("sum income: %w", err)
	}
	expenses, err := s.agg.SumExpenses(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Reply{}, fmt.Errorf("sum expenses: %w", err)
	}
	net := income.Sub(expenses)

	verdict := "you broke even"
	if net.IsPositive() {
		verdict = fmt.Sprintf("you are %s ahead", core.FormatAmount(net))
	} else if net.IsNegative() {
		verdict = fmt.Sprintf("you are %s behind", core.FormatAmount(net.Neg()))
	}
	text := fmt.Sprintf("%s you earned %s and spent %s, so %s.",
		sentenceStart(window.Label), core.FormatAmount(income), core.FormatAmount(expenses), verdict)

	return Reply{
		Reply: text,
		Actions: []Action{
			chartAction("Show income vs expenses", "income_vs_expenses", window),
			navigateAction("See expenses", "/expenses", window),
		},
	}, nil
}

func (s *Service) answerBudgetStatus(ctx context.Context, userID int64, window Range) (Reply, error) {
	budgets, err := s.latestBudgets(ctx, userID, window, "")
	if err != nil {
		return Reply{}, err
	}
	if len(budgets) == 0 {
		return Reply{
			Reply:   fmt.Sprintf("You don't have any %s budgets set up yet.", periodClassFor(window)),
			Actions: []Action{createBudgetAction(window)},
		}, nil
	}

	limit := decimal.Zero
	for _, b := range budgets {
		limit = limit.Add(b.LimitAmount)
	}
	spent, err := s.agg.SumExpenses(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Reply{}, fmt.Errorf("sum expenses: %w", err)
	}

	var text string
	if spent.GreaterThan(limit) {
		text = fmt.Sprintf("You're over budget %s: %s spent against a combined limit of %s (%s over).",
			window.Label, core.FormatAmount(spent), core.FormatAmount(limit), core.FormatAmount(spent.Sub(limit)))
	} else {
		text = fmt.Sprintf("You've used %s of your combined %s budget %s; %s remaining.",
			core.FormatAmount(spent), core.FormatAmount(limit), window.Label, core.FormatAmount(limit.Sub(spent)))
	}

	return Reply{
		Reply: text,
		Actions: []Action{
			navigateAction("See budgets", "/budgets", window),
			chartAction("Show spending breakdown", "category_breakdown", window),
		},
	}, nil
}

func (s *Service) answerCategoryBudget(ctx context.Context, userID int64, window Range, category string) (Reply, error) {
	budgets, err := s.latestBudgets(ctx, userID, window, category)
	if err != nil {
		return Reply{}, err
	}
	spent, err := s.agg.SumExpenses(ctx, userID, window.Start, window.End, category)
	if err != nil {
		return Reply{}, fmt.Errorf("sum expenses: %w", err)
	}

	if len(budgets) == 0 {
		return Reply{
			Reply: fmt.Sprintf("You don't have a %s budget for %s, but you spent %s %s.",
				periodClassFor(window), category, core.FormatAmount(spent), window.Label),
			Actions: []Action{createBudgetAction(window)},
		}, nil
	}

	limit := budgets[0].LimitAmount
	var text string
	if spent.GreaterThan(limit) {
		text = fmt.Sprintf("You're over your %s budget %s: %s spent of %s (%s over).",
			category, window.Label, core.FormatAmount(spent), core.FormatAmount(limit), core.FormatAmount(spent.Sub(limit)))
	} else {
		text = fmt.Sprintf("You've spent %s of your %s %s budget %s; %s left.",
			core.FormatAmount(spent), core.FormatAmount(limit), category, window.Label, core.FormatAmount(limit.Sub(spent)))
	}

	expensesAction := navigateAction("See expenses", "/expenses", window)
	expensesAction.Params["category"] = category
	return Reply{
		Reply:   text,
		Actions: []Action{expensesAction, navigateAction("See budgets", "/budgets", window)},
	}, nil
}

func (s *Service) answerBudgetExtremum(ctx context.Context, userID int64, window Range, highest bool) (Reply, error) {
	budgets, err := s.latestBudgets(ctx, userID, window, "")
	if err != nil {
		return Reply{}, err
	}
	if len(budgets) == 0 {
		return Reply{
			Reply:   fmt.Sprintf("You don't have any %s budgets set up yet.", periodClassFor(window)),
			Actions: []Action{createBudgetAction(window)},
		}, nil
	}

	pick := budgets[0]
	for _, b := range budgets[1:] {
		if highest && b.LimitAmount.GreaterThan(pick.LimitAmount) {
			pick = b
		}
		if !highest && b.LimitAmount.LessThan(pick.LimitAmount) {
			pick = b
		}
	}

	word := "highest"
	if !highest {
		word = "lowest"
	}
	text := fmt.Sprintf("Your %s %s budget is %s for %s.",
		word, periodClassFor(window), core.FormatAmount(pick.LimitAmount), pick.Category)
	return Reply{Reply: text, Actions: []Action{navigateAction("See budgets", "/budgets", window)}}, nil
}

func (s *Service) answerTopCategory(ctx context.Context, userID int64, window Range) (Reply, error) {
	top, err := s.agg.TopExpenseCategory(ctx, userID, window.Start, window.End)
	if err != nil {
		return Reply{}, fmt.Errorf("top expense category: %w", err)
	}
	if top == nil {
		return Reply{
			Reply:   fmt.Sprintf("I couldn't find any expenses %s.", window.Label),
			Actions: []Action{navigateAction("Add an expense", "/expenses", window)},
		}, nil
	}

	text := fmt.Sprintf("Your top spending category %s is %s at %s.",
		window.Label, top.Category, core.FormatAmount(top.Total))
	return Reply{
		Reply:   text,
		Actions: []Action{chartAction("Show spending breakdown", "category_breakdown", window)},
	}, nil
}

func (s *Service) answerOnTrack(ctx context.Context, userID int64) (Reply, error) {
	now := s.now().UTC()
	window := RangeForKey(PeriodQuarter, now)

	spent, err := s.agg.SumExpenses(ctx, userID, window.Start, dayEnd(now), "")
	if err != nil {
		return Reply{}, fmt.Errorf("sum expenses: %w", err)
	}
	budgets, err := s.latestBudgets(ctx, userID, window, "")
	if err != nil {
		return Reply{}, err
	}
	if len(budgets) == 0 {
		return Reply{
			Reply: fmt.Sprintf("You've spent %s so far this quarter, but there are no quarterly budgets to pace against.",
				core.FormatAmount(spent)),
			Actions: []Action{createBudgetAction(window)},
		}, nil
	}

	limit := decimal.Zero
	for _, b := range budgets {
		limit = limit.Add(b.LimitAmount)
	}

	elapsed := now.Sub(window.Start).Seconds() / window.End.Sub(window.Start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	} else if elapsed > 1 {
		elapsed = 1
	}
	pace := limit.Mul(decimal.NewFromFloat(elapsed)).Round(2)

	var text string
	if spent.LessThanOrEqual(pace) {
		text = fmt.Sprintf("You're on track this quarter: %s spent against an expected pace of %s (quarterly budget %s).",
			core.FormatAmount(spent), core.FormatAmount(pace), core.FormatAmount(limit))
	} else {
		text = fmt.Sprintf("You're running ahead of pace this quarter: %s spent where %s was expected by now (quarterly budget %s).",
			core.FormatAmount(spent), core.FormatAmount(pace), core.FormatAmount(limit))
	}
	return Reply{
		Reply: text,
		Actions: []Action{
			navigateAction("See budgets", "/budgets", window),
			chartAction("Show spending breakdown", "category_breakdown", window),
		},
	}, nil
}

// latestBudgets fetches budgets for the window's period class and keeps only
// the most recent definition per category (case-insensitive), dropping
// non-positive limits. Storage returns rows newest first.
func (s *Service) latestBudgets(ctx context.Context, userID int64, window Range, category string) ([]core.Budget, error) {
	rows, err := s.agg.BudgetsFor(ctx, userID, periodClassFor(window), category, window.End)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]core.Budget, 0, len(rows))
	for _, b := range rows {
		key := strings.ToLower(b.Category)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !b.LimitAmount.IsPositive() {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// periodClassFor maps a resolved window onto a budget period class.
// Free-form windows default to monthly.
func periodClassFor(window Range) string {
	switch window.Key {
	case PeriodWeek, PeriodLastWeek:
		return core.PeriodWeekly
	case PeriodQuarter, PeriodLastQuarter:
		return core.PeriodQuarterly
	case PeriodHalfYear, PeriodLastHalfYear:
		return core.PeriodHalfYearly
	case PeriodYear, PeriodLastYear:
		return core.PeriodYearly
	default:
		return core.PeriodMonthly
	}
}

func (s *Service) helpReply() Reply {
	return Reply{
		Reply: "I can answer questions about your spending, income and budgets. " +
			`Try "how much did I spend this month", "am I over budget on groceries" or "income vs expenses last quarter".`,
	}
}

func (s *Service) missingCategoryReply() Reply {
	return Reply{
		Reply: `I couldn't tell which category you meant. Try naming it, like "how much did I spend on groceries this month".`,
	}
}

func navigateAction(label, route string, window Range) Action {
	return Action{
		Type:   "navigate",
		Label:  label,
		Params: windowParams(route, window),
	}
}

func chartAction(label, chart string, window Range) Action {
	params := windowParams("", window)
	params["chart"] = chart
	return Action{Type: "show_chart", Label: label, Params: params}
}

func createBudgetAction(window Range) Action {
	return Action{
		Type:   "navigate",
		Label:  "Create a budget",
		Params: map[string]any{"route": "/budgets/new", "period": periodClassFor(window)},
	}
}

func windowParams(route string, window Range) map[string]any {
	params := map[string]any{
		"start": window.Start.Format(time.RFC3339),
		"end":   window.End.Format(time.RFC3339),
	}
	if route != "" {
		params["route"] = route
	}
	if window.Key != "" {
		params["period"] = window.Key
	}
	return params
}

// sentenceStart capitalizes a window label for use at the start of a reply.
func sentenceStart(label string) string {
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
