package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), "tester", "tester@example.com", "hash")
	require.NoError(t, err)
	return u
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "Alice@Example.com", "hash1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.False(t, u.IsVerified)

	_, err = repo.CreateUser(ctx, "alice", "other@example.com", "hash2")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = repo.CreateUser(ctx, "alice2", "alice@example.com", "hash2")
	assert.ErrorIs(t, err, ErrDuplicate)

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	require.NoError(t, repo.MarkUserVerified(ctx, u.ID))
	verified, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	require.NoError(t, repo.UpdateUserPassword(ctx, u.ID, "hash3"))
	updated, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash3", updated.HashedPassword)

	_, err = repo.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthTokenConsume(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	require.NoError(t, repo.CreateAuthToken(ctx, u.ID, "hash-abc", TokenPurposePasswordReset, time.Now().Add(time.Hour)))

	// Wrong purpose is invisible.
	_, err := repo.ConsumeAuthToken(ctx, "hash-abc", TokenPurposeVerifyEmail)
	assert.ErrorIs(t, err, ErrNotFound)

	userID, err := repo.ConsumeAuthToken(ctx, "hash-abc", TokenPurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)

	// Single use.
	_, err = repo.ConsumeAuthToken(ctx, "hash-abc", TokenPurposePasswordReset)
	assert.ErrorIs(t, err, ErrNotFound)

	// Expired tokens are rejected.
	require.NoError(t, repo.CreateAuthToken(ctx, u.ID, "hash-old", TokenPurposePasswordReset, time.Now().Add(-time.Minute)))
	_, err = repo.ConsumeAuthToken(ctx, "hash-old", TokenPurposePasswordReset)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpenseCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	e, err := repo.CreateExpense(ctx, core.Expense{
		UserID:      u.ID,
		Amount:      decimal.RequireFromString("12.50"),
		Description: "lunch",
		Category:    "Restaurants",
	})
	require.NoError(t, err)
	require.NotZero(t, e.ID)
	assert.Equal(t, "restaurants", e.Category)

	got, err := repo.GetExpense(ctx, u.ID, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.50")))

	// Rows are scoped to their owner.
	_, err = repo.GetExpense(ctx, u.ID+1, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	e.Amount = decimal.RequireFromString("15.00")
	e.Description = "lunch out"
	require.NoError(t, repo.UpdateExpense(ctx, e))
	got, err = repo.GetExpense(ctx, u.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "lunch out", got.Description)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("15.00")))

	require.NoError(t, repo.DeleteExpense(ctx, u.ID, e.ID))
	assert.ErrorIs(t, repo.DeleteExpense(ctx, u.ID, e.ID), ErrNotFound)
}

func TestListExpensesFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	base := time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC)
	seed := []core.Expense{
		{UserID: u.ID, Amount: decimal.RequireFromString("10"), Category: "groceries", CreatedAt: base},
		{UserID: u.ID, Amount: decimal.RequireFromString("20"), Category: "groceries", CreatedAt: base.AddDate(0, 0, 5)},
		{UserID: u.ID, Amount: decimal.RequireFromString("30"), Category: "transport", CreatedAt: base.AddDate(0, 0, 10)},
		{UserID: u.ID, Amount: decimal.RequireFromString("40"), Category: "groceries", CreatedAt: base.AddDate(0, 1, 0)},
	}
	for _, e := range seed {
		_, err := repo.CreateExpense(ctx, e)
		require.NoError(t, err)
	}

	all, err := repo.ListExpenses(ctx, u.ID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest first.
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	groceries, err := repo.ListExpenses(ctx, u.ID, ListFilter{Category: "groceries"})
	require.NoError(t, err)
	assert.Len(t, groceries, 3)

	september, err := repo.ListExpenses(ctx, u.ID, ListFilter{
		Start: time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.September, 30, 23, 59, 59, 999999000, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, september, 3)

	paged, err := repo.ListExpenses(ctx, u.ID, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
}

func TestAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	base := time.Date(2025, time.September, 5, 0, 0, 0, 0, time.UTC)
	for _, e := range []core.Expense{
		{UserID: u.ID, Amount: decimal.RequireFromString("10.10"), Category: "groceries", CreatedAt: base},
		{UserID: u.ID, Amount: decimal.RequireFromString("20.20"), Category: "groceries", CreatedAt: base.AddDate(0, 0, 1)},
		{UserID: u.ID, Amount: decimal.RequireFromString("5.50"), Category: "transport", CreatedAt: base.AddDate(0, 0, 2)},
		// Outside the window below.
		{UserID: u.ID, Amount: decimal.RequireFromString("99"), Category: "groceries", CreatedAt: base.AddDate(0, 2, 0)},
	} {
		_, err := repo.CreateExpense(ctx, e)
		require.NoError(t, err)
	}
	_, err := repo.CreateIncome(ctx, core.Income{
		UserID: u.ID, Amount: decimal.RequireFromString("1000"), Source: "salary", ReceivedAt: base,
	})
	require.NoError(t, err)

	start := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.September, 30, 23, 59, 59, 999999000, time.UTC)

	total, err := repo.SumExpenses(ctx, u.ID, start, end, "")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("35.80")), "got %s", total)

	groceries, err := repo.SumExpenses(ctx, u.ID, start, end, "groceries")
	require.NoError(t, err)
	assert.True(t, groceries.Equal(decimal.RequireFromString("30.30")))

	income, err := repo.SumIncome(ctx, u.ID, start, end, "salary")
	require.NoError(t, err)
	assert.True(t, income.Equal(decimal.RequireFromString("1000")))

	byCat, err := repo.SumExpensesByCategory(ctx, u.ID, start, end)
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	assert.Equal(t, "groceries", byCat[0].Category)

	top, err := repo.TopExpenseCategory(ctx, u.ID, start, end)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "groceries", top.Category)

	empty, err := repo.TopExpenseCategory(ctx, u.ID, start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestBudgetsForOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	first, err := repo.CreateBudget(ctx, core.Budget{
		UserID: u.ID, LimitAmount: decimal.RequireFromString("100"),
		Category: "groceries", Period: core.PeriodMonthly,
	})
	require.NoError(t, err)
	second, err := repo.CreateBudget(ctx, core.Budget{
		UserID: u.ID, LimitAmount: decimal.RequireFromString("200"),
		Category: "groceries", Period: core.PeriodMonthly,
	})
	require.NoError(t, err)
	_, err = repo.CreateBudget(ctx, core.Budget{
		UserID: u.ID, LimitAmount: decimal.RequireFromString("300"),
		Category: "fun", Period: core.PeriodWeekly,
	})
	require.NoError(t, err)

	rows, err := repo.BudgetsFor(ctx, u.ID, core.PeriodMonthly, "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest definition first: latest-wins dedup depends on this.
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)

	byCat, err := repo.BudgetsFor(ctx, u.ID, core.PeriodMonthly, "GROCERIES", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, byCat, 2)

	none, err := repo.BudgetsFor(ctx, u.ID, core.PeriodMonthly, "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAlertLogDedup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	b, err := repo.CreateBudget(ctx, core.Budget{
		UserID: u.ID, LimitAmount: decimal.RequireFromString("100"),
		Category: "groceries", Period: core.PeriodMonthly,
	})
	require.NoError(t, err)

	periodStart := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	alert := core.AlertLog{
		UserID: u.ID, BudgetID: b.ID, Category: "groceries",
		Period: core.PeriodMonthly, Type: core.AlertNearLimit,
		Message: "80% reached", PeriodStart: periodStart,
	}

	_, err = repo.CreateAlertLog(ctx, alert)
	require.NoError(t, err)

	_, err = repo.CreateAlertLog(ctx, alert)
	assert.ErrorIs(t, err, ErrDuplicate)

	// A different threshold in the same window is a new alert.
	alert.Type = core.AlertLimitExceeded
	_, err = repo.CreateAlertLog(ctx, alert)
	require.NoError(t, err)

	logs, err := repo.ListAlertLogs(ctx, u.ID, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestCategoryMappings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	_, err := repo.CategoryMappingFor(ctx, u.ID, "weekly shop at aldi")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpsertCategoryMapping(ctx, u.ID, "weekly shop at aldi", "groceries", "expense"))
	cat, err := repo.CategoryMappingFor(ctx, u.ID, "weekly shop at aldi")
	require.NoError(t, err)
	assert.Equal(t, "groceries", cat)

	// Re-learning the same pattern overwrites in place.
	require.NoError(t, repo.UpsertCategoryMapping(ctx, u.ID, "weekly shop at aldi", "shopping", "expense"))
	cat, err = repo.CategoryMappingFor(ctx, u.ID, "weekly shop at aldi")
	require.NoError(t, err)
	assert.Equal(t, "shopping", cat)

	// Mappings are per user.
	other, err := repo.CreateUser(ctx, "other", "other@example.com", "hash")
	require.NoError(t, err)
	_, err = repo.CategoryMappingFor(ctx, other.ID, "weekly shop at aldi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMostFrequentCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo)

	_, err := repo.MostFrequentCategory(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, cat := range []string{"groceries", "groceries", "transport"} {
		_, err := repo.CreateExpense(ctx, core.Expense{
			UserID: u.ID, Amount: decimal.RequireFromString("10"), Category: cat,
		})
		require.NoError(t, err)
	}

	cat, err := repo.MostFrequentCategory(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", cat)
}
