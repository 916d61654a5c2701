package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

type stubCompleter struct {
	out   string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestParseIntentJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		intent   Intent
		category string
		wantErr  bool
	}{
		{
			name:     "plain object",
			raw:      `{"intent": "spend_in_category_period", "params": {"category": "Groceries", "period": "month"}}`,
			intent:   IntentSpendInCategoryPeriod,
			category: "groceries",
		},
		{
			name:   "fenced json",
			raw:    "```json\n{\"intent\": \"income_in_period\", \"params\": {}}\n```",
			intent: IntentIncomeInPeriod,
		},
		{
			name:   "prose around the object",
			raw:    `Sure! Here is the classification: {"intent": "budget_status_period", "params": {}} Hope that helps.`,
			intent: IntentBudgetStatusPeriod,
		},
		{
			name:   "single quotes repaired",
			raw:    `{'intent': 'top_category_in_period', 'params': {'period': 'last_month'}}`,
			intent: IntentTopCategoryInPeriod,
		},
		{
			name:   "alias folded",
			raw:    `{"intent": "budget_status", "params": {}}`,
			intent: IntentBudgetStatusPeriod,
		},
		{
			name:   "unrecognized intent becomes unknown",
			raw:    `{"intent": "order_pizza", "params": {}}`,
			intent: IntentUnknown,
		},
		{
			name:    "no object at all",
			raw:     "I cannot classify this.",
			wantErr: true,
		},
		{
			name:    "hopelessly malformed",
			raw:     `{"intent": spend_in_period`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, params, err := parseIntentJSON(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, IntentUnknown, intent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.intent, intent)
			assert.Equal(t, tt.category, params.Category)
		})
	}
}

func TestParseIntentJSONDates(t *testing.T) {
	raw := `{"intent": "spend_in_period", "params": {"start_date": "2025-03-01", "end_date": "2025-03-31"}}`
	_, params, err := parseIntentJSON(raw)
	require.NoError(t, err)
	require.NotNil(t, params.Start)
	require.NotNil(t, params.End)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), *params.Start)
	assert.Equal(t, time.Date(2025, time.March, 31, 23, 59, 59, 999999000, time.UTC), *params.End)

	// Garbage dates are dropped, not fatal.
	raw = `{"intent": "spend_in_period", "params": {"start_date": "soonish"}}`
	_, params, err = parseIntentJSON(raw)
	require.NoError(t, err)
	assert.Nil(t, params.Start)
}

func TestExternalClassifierNeverRaises(t *testing.T) {
	ec := NewExternalClassifier(&stubCompleter{err: errors.New("model offline")}, testLogger())
	intent, params := ec.Classify(context.Background(), "whatever")
	assert.Equal(t, IntentUnknown, intent)
	assert.Empty(t, params.Category)

	ec = NewExternalClassifier(&stubCompleter{out: "not json at all"}, testLogger())
	intent, _ = ec.Classify(context.Background(), "whatever")
	assert.Equal(t, IntentUnknown, intent)
}

func TestExternalClassifierHappyPath(t *testing.T) {
	stub := &stubCompleter{out: `{"intent": "spend_in_category_period", "params": {"category": "dining", "period": "last_month"}}`}
	ec := NewExternalClassifier(stub, testLogger())

	intent, params := ec.Classify(context.Background(), "how much for restaurants recently")
	assert.Equal(t, IntentSpendInCategoryPeriod, intent)
	assert.Equal(t, "restaurants", params.Category)
	assert.Equal(t, "last_month", params.Period)
	assert.Equal(t, 1, stub.calls)
}
