package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, kind models.EntryKind, email, amount string, date time.Time) models.LedgerEntry {
	return models.LedgerEntry{ID: id, Kind: kind, Email: email, Amount: dec(amount), Date: date}
}

func TestResolveAccount(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("3"))

	account, err := f.ledger.ResolveAccount(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", account.Email)

	_, err = f.ledger.ResolveAccount(context.Background(), "ANA@x.com")
	assert.ErrorIs(t, err, ErrNotFound, "lookup is case sensitive")

	_, err = f.ledger.ResolveAccount(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestResolveAccountTakesFirstMatch(t *testing.T) {
	f := newFixture(t)
	first := f.store.AddAccount("dup@x.com", dec("1"))
	f.store.AddAccount("dup@x.com", dec("2"))

	account, err := f.ledger.ResolveAccount(context.Background(), "dup@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, account.ID)
}

func TestVerifyRecipient(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("3"))
	ctx := context.Background()

	assert.True(t, f.ledger.VerifyRecipient(ctx, "ana@x.com"))
	assert.False(t, f.ledger.VerifyRecipient(ctx, "ghost@x.com"))
	assert.False(t, f.ledger.VerifyRecipient(ctx, ""))

	f.store.FailNext(memory.OpFindAccounts, errDown)
	assert.False(t, f.ledger.VerifyRecipient(ctx, "ana@x.com"), "transport failure degrades to false")
}

func TestCheckRecipient(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("3"))
	ctx := context.Background()

	status, err := f.ledger.CheckRecipient(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, RecipientFound, status)

	status, err = f.ledger.CheckRecipient(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Equal(t, RecipientNotFound, status)

	f.store.FailNext(memory.OpFindAccounts, errDown)
	status, err = f.ledger.CheckRecipient(ctx, "ana@x.com")
	assert.Equal(t, RecipientUnknown, status)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestDashboardData(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("420.10"))
	f.store.SetEntries([]models.LedgerEntry{
		entry(6, models.EntryCredit, "ana@x.com", "100", fixedNow.Add(-time.Hour)),
		entry(5, models.EntryCredit, "ana@x.com", "50.5", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)),
		entry(4, models.EntryDebit, "ana@x.com", "20", time.Date(2024, time.May, 31, 23, 0, 0, 0, time.UTC)),
		entry(3, models.EntryDebit, "ana@x.com", "999", time.Date(2024, time.April, 30, 23, 59, 0, 0, time.UTC)),
		entry(2, models.EntryCredit, "ana@x.com", "999", time.Date(2023, time.May, 10, 0, 0, 0, 0, time.UTC)),
		entry(1, models.EntryCredit, "bo@x.com", "999", fixedNow),
	})

	data, err := f.ledger.DashboardData(context.Background(), "ana@x.com")
	require.NoError(t, err)

	assert.True(t, data.TotalBalance.Equal(dec("420.10")))
	assert.True(t, data.MonthlyIncome.Equal(dec("150.5")), "got %s", data.MonthlyIncome)
	assert.True(t, data.MonthlyExpenses.Equal(dec("20")), "got %s", data.MonthlyExpenses)
}

func TestDashboardDataErrors(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("1"))
	ctx := context.Background()

	_, err := f.ledger.DashboardData(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = f.ledger.DashboardData(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	f.store.FailNext(memory.OpGetTransactions, errDown)
	_, err = f.ledger.DashboardData(ctx, "ana@x.com")
	assert.ErrorIs(t, err, ErrTransportFailure)

	f.store.SetEntries(nil)
	_, err = f.ledger.DashboardData(ctx, "ana@x.com")
	assert.ErrorIs(t, err, ErrInvalidServerResponse)
}

func TestRecentTransactions(t *testing.T) {
	f := newFixture(t)

	var entries []models.LedgerEntry
	for i := 1; i <= 7; i++ {
		// ids and dates deliberately out of step
		date := fixedNow.Add(time.Duration((i*3)%7) * time.Hour)
		entries = append(entries, entry(int64(i), models.EntryCredit, "u@x.com", "1", date))
	}
	entries = append(entries, entry(8, models.EntryDebit, "other@x.com", "1", fixedNow.Add(48*time.Hour)))
	f.store.SetEntries(entries)

	recent, err := f.ledger.RecentTransactions(context.Background(), "u@x.com")
	require.NoError(t, err)
	require.Len(t, recent, RecentLimit)

	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].Date.After(recent[i].Date), "entries must be strictly newest first")
	}
	for _, e := range recent {
		assert.Equal(t, "u@x.com", e.Email)
	}
	assert.Equal(t, fixedNow.Add(6*time.Hour), recent[0].Date)
}

func TestRecentTransactionsDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.FailNext(memory.OpGetTransactions, errDown)
	recent, err := f.ledger.RecentTransactions(ctx, "u@x.com")
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)

	f.store.SetEntries(nil)
	recent, err = f.ledger.RecentTransactions(ctx, "u@x.com")
	require.NoError(t, err)
	assert.Empty(t, recent)

	_, err = f.ledger.RecentTransactions(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestBalanceHistorySorted(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalanceHistory([]models.BalanceHistoryPoint{
		{Month: "2024-03", Amount: dec("3")},
		{Month: "2023-12", Amount: dec("0")},
		{Month: "2024-01", Amount: dec("1")},
		{Month: "2024-02", Amount: dec("2")},
	})

	history := f.ledger.BalanceHistory(context.Background())

	months := make([]string, 0, len(history))
	for _, p := range history {
		months = append(months, p.Month)
	}
	assert.Equal(t, []string{"2023-12", "2024-01", "2024-02", "2024-03"}, months)
}

func TestBalanceHistoryMixedLabels(t *testing.T) {
	f := newFixture(t)
	f.store.SetBalanceHistory([]models.BalanceHistoryPoint{
		{Month: "March 2024"},
		{Month: "someday"},
		{Month: "Jan 2024"},
		{Month: "2024-02-01"},
		{Month: "later"},
	})

	history := f.ledger.BalanceHistory(context.Background())

	months := make([]string, 0, len(history))
	for _, p := range history {
		months = append(months, p.Month)
	}
	assert.Equal(t, []string{"Jan 2024", "2024-02-01", "March 2024", "someday", "later"}, months)
}

func TestBalanceHistoryNeverFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	history := f.ledger.BalanceHistory(ctx)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	f.store.FailNext(memory.OpGetTransactions, errDown)
	history = f.ledger.BalanceHistory(ctx)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSessionFlows(t *testing.T) {
	f := newFixture(t, WithSession(staticSession{account: models.Account{Email: "ana@x.com", Balance: dec("1")}}))
	f.store.AddAccount("ana@x.com", dec("80"))
	f.store.AddAccount("bo@x.com", dec("0"))
	ctx := context.Background()

	current, err := f.ledger.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.True(t, current.Balance.Equal(dec("80")), "balance comes from the store, not the cached session")

	require.NoError(t, f.ledger.Send(ctx, "bo@x.com", dec("30"), "lunch"))
	assert.True(t, f.balance(t, "bo@x.com").Equal(dec("30")))

	data, err := f.ledger.CurrentDashboard(ctx)
	require.NoError(t, err)
	assert.True(t, data.TotalBalance.Equal(dec("50")))
	assert.True(t, data.MonthlyExpenses.Equal(dec("30")))
}

func TestSessionMissing(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.ledger.CurrentAccount(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	f = newFixture(t, WithSession(staticSession{err: interfaces.ErrNoSession}))
	err = f.ledger.Send(ctx, "bo@x.com", dec("1"), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	f = newFixture(t, WithSession(staticSession{err: errDown}))
	_, err = f.ledger.CurrentDashboard(ctx)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

type observed struct {
	op      string
	outcome string
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (o *recordingObserver) ObserveOperation(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observed{op: op, outcome: outcome})
}

func TestObserverSeesOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs))
	f.store.AddAccount("ana@x.com", dec("1"))
	ctx := context.Background()

	_, _ = f.ledger.ResolveAccount(ctx, "ana@x.com")
	_ = f.ledger.UpdateBalance(ctx, "ana@x.com", dec("5"), models.EntryDebit)
	f.store.FailNext(memory.OpGetTransactions, errDown)
	_ = f.ledger.BalanceHistory(ctx)

	assert.Equal(t, []observed{
		{op: opResolve, outcome: "ok"},
		{op: opUpdateBalance, outcome: string(KindInsufficientFunds)},
		{op: opHistory, outcome: string(KindTransportFailure)},
	}, obs.seen)
}

func TestTrackerSeesEveryOperation(t *testing.T) {
	f := newFixture(t)
	f.store.AddAccount("ana@x.com", dec("1"))

	var transitions []bool
	cancel := f.tracker.Subscribe(func(busy bool) { transitions = append(transitions, busy) })
	defer cancel()

	_, _ = f.ledger.ResolveAccount(context.Background(), "ana@x.com")
	_ = f.ledger.TransferMoney(context.Background(), "ana@x.com", "ana@x.com", dec("1"), "x")

	assert.Equal(t, []bool{false, true, false, true, false}, transitions)
	assert.Zero(t, f.tracker.InFlight())
}
