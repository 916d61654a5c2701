package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

type fakeAggregator struct {
	expenses decimal.Decimal
	income   decimal.Decimal
	top      *core.CategoryTotal
	budgets  []core.Budget

	expenseCalls  int
	lastStart     time.Time
	lastEnd       time.Time
	lastCategory  string
	lastSource    string
	lastPeriod    string
	lastCreatedBy time.Time
}

func (f *fakeAggregator) SumExpenses(ctx context.Context, userID int64, start, end time.Time, category string) (decimal.Decimal, error) {
	f.expenseCalls++
	f.lastStart, f.lastEnd, f.lastCategory = start, end, category
	return f.expenses, nil
}

func (f *fakeAggregator) SumIncome(ctx context.Context, userID int64, start, end time.Time, source string) (decimal.Decimal, error) {
	f.lastStart, f.lastEnd, f.lastSource = start, end, source
	return f.income, nil
}

func (f *fakeAggregator) TopExpenseCategory(ctx context.Context, userID int64, start, end time.Time) (*core.CategoryTotal, error) {
	f.lastStart, f.lastEnd = start, end
	return f.top, nil
}

func (f *fakeAggregator) BudgetsFor(ctx context.Context, userID int64, period, category string, createdBefore time.Time) ([]core.Budget, error) {
	f.lastPeriod, f.lastCreatedBy = period, createdBefore
	if category != "" {
		var filtered []core.Budget
		for _, b := range f.budgets {
			if b.Category == category {
				filtered = append(filtered, b)
			}
		}
		return filtered, nil
	}
	return f.budgets, nil
}

func newTestService(agg Aggregator, external *ExternalClassifier) *Service {
	svc := NewService(agg, external, testLogger())
	svc.now = func() time.Time { return anchor }
	return svc
}

func TestAnswerSpendInPeriod(t *testing.T) {
	agg := &fakeAggregator{expenses: decimal.RequireFromString("123.45")}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "How much did I spend this month?")
	require.NoError(t, err)
	assert.Equal(t, "You spent $123.45 this month.", reply.Reply)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "navigate", reply.Actions[0].Type)
	assert.Equal(t, "/expenses", reply.Actions[0].Params["route"])

	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), agg.lastStart)
	assert.Equal(t, time.Date(2025, time.September, 30, 23, 59, 59, 999999000, time.UTC), agg.lastEnd)
	assert.Empty(t, agg.lastCategory)
}

func TestAnswerSpendInCategory(t *testing.T) {
	agg := &fakeAggregator{expenses: decimal.RequireFromString("40")}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "how much did I spend on dining last week")
	require.NoError(t, err)
	assert.Equal(t, "You spent $40.00 on restaurants last week.", reply.Reply)
	assert.Equal(t, "restaurants", agg.lastCategory)
}

func TestAnswerSinceMonthEndsAtAnchor(t *testing.T) {
	agg := &fakeAggregator{expenses: decimal.Zero}
	svc := newTestService(agg, nil)

	_, err := svc.Answer(context.Background(), 1, "how much have I spent since June?")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), agg.lastStart)
	assert.Equal(t, anchor, agg.lastEnd)
}

func TestAnswerOverview(t *testing.T) {
	agg := &fakeAggregator{
		income:   decimal.RequireFromString("3000"),
		expenses: decimal.RequireFromString("2100.50"),
	}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "income vs expenses this month")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "$3000.00")
	assert.Contains(t, reply.Reply, "$2100.50")
	assert.Contains(t, reply.Reply, "$899.50 ahead")
	require.Len(t, reply.Actions, 2)
	assert.Equal(t, "show_chart", reply.Actions[0].Type)
}

func TestAnswerBudgetStatusLatestWins(t *testing.T) {
	created := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)
	agg := &fakeAggregator{
		expenses: decimal.RequireFromString("150"),
		// Newest first, as storage returns them. The stale groceries row
		// and the zero-limit row must both be ignored.
		budgets: []core.Budget{
			{ID: 4, Category: "groceries", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("200"), CreatedAt: created},
			{ID: 2, Category: "Groceries", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("500"), CreatedAt: created.AddDate(0, -1, 0)},
			{ID: 3, Category: "transport", Period: core.PeriodMonthly, LimitAmount: decimal.Zero, CreatedAt: created},
			{ID: 5, Category: "utilities", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("100"), CreatedAt: created},
		},
	}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "am I over budget this month?")
	require.NoError(t, err)
	// Combined limit is 200 + 100: the duplicate and the zero limit are gone.
	assert.Contains(t, reply.Reply, "$300.00")
	assert.Contains(t, reply.Reply, "$150.00")
	assert.Equal(t, core.PeriodMonthly, agg.lastPeriod)
	assert.Equal(t, time.Date(2025, time.September, 30, 23, 59, 59, 999999000, time.UTC), agg.lastCreatedBy)
}

func TestAnswerCategoryBudgetOverLimit(t *testing.T) {
	agg := &fakeAggregator{
		expenses: decimal.RequireFromString("250"),
		budgets: []core.Budget{
			{ID: 1, Category: "groceries", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("200")},
		},
	}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "am I over budget on groceries this month?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "over your groceries budget")
	assert.Contains(t, reply.Reply, "$50.00 over")
	assert.Equal(t, "groceries", agg.lastCategory)
}

func TestAnswerCategoryBudgetMissingBudget(t *testing.T) {
	agg := &fakeAggregator{expenses: decimal.RequireFromString("75")}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "how is my transport budget this month?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "don't have a monthly budget for transport")
	assert.Contains(t, reply.Reply, "$75.00")
	require.NotEmpty(t, reply.Actions)
	assert.Equal(t, "Create a budget", reply.Actions[0].Label)
}

func TestAnswerBudgetExtremum(t *testing.T) {
	agg := &fakeAggregator{
		budgets: []core.Budget{
			{ID: 1, Category: "groceries", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("200")},
			{ID: 2, Category: "rent", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("900")},
			{ID: 3, Category: "fun", Period: core.PeriodMonthly, LimitAmount: decimal.RequireFromString("50")},
		},
	}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "what is my highest budget this month?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "highest")
	assert.Contains(t, reply.Reply, "rent")
	assert.Contains(t, reply.Reply, "$900.00")

	reply, err = svc.Answer(context.Background(), 1, "what is my lowest budget this month?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "lowest")
	assert.Contains(t, reply.Reply, "fun")
}

func TestAnswerTopCategory(t *testing.T) {
	agg := &fakeAggregator{top: &core.CategoryTotal{Category: "groceries", Total: decimal.RequireFromString("310.10")}}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "what did I spend the most on last month?")
	require.NoError(t, err)
	assert.Equal(t, "Your top spending category last month is groceries at $310.10.", reply.Reply)

	agg.top = nil
	reply, err = svc.Answer(context.Background(), 1, "what did I spend the most on last month?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "couldn't find any expenses")
}

func TestAnswerOnTrackQuarter(t *testing.T) {
	// Anchor sits 76 days into a 92-day quarter, so the expected pace is
	// well above a modest spend.
	agg := &fakeAggregator{
		expenses: decimal.RequireFromString("500"),
		budgets: []core.Budget{
			{ID: 1, Category: "overall", Period: core.PeriodQuarterly, LimitAmount: decimal.RequireFromString("3000")},
		},
	}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "am I on track this quarter?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "on track")
	assert.Equal(t, core.PeriodQuarterly, agg.lastPeriod)
	// Spend is measured from quarter start to the anchor day's end.
	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), agg.lastStart)
	assert.Equal(t, dayEnd(anchor), agg.lastEnd)
}

func TestAnswerOnTrackWithoutBudgets(t *testing.T) {
	agg := &fakeAggregator{expenses: decimal.RequireFromString("500")}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "am I on track this quarter?")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "no quarterly budgets")
}

func TestAnswerUnknownWithoutExternal(t *testing.T) {
	agg := &fakeAggregator{}
	svc := newTestService(agg, nil)

	reply, err := svc.Answer(context.Background(), 1, "tell me a joke")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "spending, income and budgets")
	assert.Zero(t, agg.expenseCalls)
}

func TestAnswerLocalRulesSkipExternal(t *testing.T) {
	stub := &stubCompleter{out: `{"intent": "income_in_period", "params": {}}`}
	agg := &fakeAggregator{expenses: decimal.RequireFromString("10")}
	svc := newTestService(agg, NewExternalClassifier(stub, testLogger()))

	_, err := svc.Answer(context.Background(), 1, "how much did I spend this month")
	require.NoError(t, err)
	assert.Zero(t, stub.calls, "external classifier must not run when local rules match")
}

func TestAnswerExternalFallback(t *testing.T) {
	stub := &stubCompleter{out: `{"intent": "spend_in_category_period", "params": {"category": "groceries", "period": "last_month"}}`}
	agg := &fakeAggregator{expenses: decimal.RequireFromString("88")}
	svc := newTestService(agg, NewExternalClassifier(stub, testLogger()))

	reply, err := svc.Answer(context.Background(), 1, "grocery damage report please")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Contains(t, reply.Reply, "$88.00")
	assert.Equal(t, "groceries", agg.lastCategory)
	// Period came from the classifier params, not the text.
	assert.Equal(t, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), agg.lastStart)
}

func TestAnswerExternalMissingCategory(t *testing.T) {
	stub := &stubCompleter{out: `{"intent": "spend_in_category_period", "params": {}}`}
	agg := &fakeAggregator{}
	svc := newTestService(agg, NewExternalClassifier(stub, testLogger()))

	reply, err := svc.Answer(context.Background(), 1, "damage report please")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "couldn't tell which category")
	assert.Zero(t, agg.expenseCalls)
}

func TestResolveRangePrecedence(t *testing.T) {
	svc := newTestService(&fakeAggregator{}, nil)
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	params := Params{Period: PeriodYear, Start: &start, End: &end}

	// A canonical phrase in the text beats everything in params.
	r := svc.resolveRange("spending last month", params)
	assert.Equal(t, PeriodLastMonth, r.Key)

	// A bare month in the text beats classifier-supplied dates.
	r = svc.resolveRange("spending in march", params)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), r.Start)

	// Explicit dates beat the period key.
	r = svc.resolveRange("spending", params)
	assert.Equal(t, start, r.Start)
	assert.Equal(t, end, r.End)

	// Period key is used when nothing else matches.
	r = svc.resolveRange("spending", Params{Period: PeriodYear})
	assert.Equal(t, PeriodYear, r.Key)

	// Default is the current month.
	r = svc.resolveRange("spending", Params{})
	assert.Equal(t, PeriodMonth, r.Key)
}
