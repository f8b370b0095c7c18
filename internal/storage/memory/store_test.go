package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "users": [
    {"id": 1, "email": "ana@x.com", "password": "pw", "balance": 1500.25},
    {"id": "2", "email": "bo@x.com", "password": "pw", "balance": 20}
  ],
  "transactions": {
    "recentTransactions": [
      {"id": 2, "type": "debit", "email": "ana@x.com", "amount": 10, "description": "coffee", "date": "2024-05-02T09:00:00.000Z"},
      {"id": 1, "type": "credit", "email": "ana@x.com", "amount": 100.5, "description": "salary", "date": "2024-05-01"}
    ],
    "balanceHistory": [
      {"month": "2024-02", "amount": 900},
      {"month": "2024-01", "amount": 800}
    ]
  }
}`

func TestLoadSeed(t *testing.T) {
	store, err := LoadSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)

	ana, ok := store.Account("ana@x.com")
	require.True(t, ok)
	assert.Equal(t, "1", ana.ID)
	assert.True(t, ana.Balance.Equal(decimal.RequireFromString("1500.25")))

	bo, ok := store.Account("bo@x.com")
	require.True(t, ok)
	assert.Equal(t, "2", bo.ID)

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, models.EntryDebit, entries[0].Kind)
	assert.True(t, entries[1].Amount.Equal(decimal.RequireFromString("100.5")))

	record, err := store.GetTransactions(context.Background())
	require.NoError(t, err)
	assert.Len(t, record.BalanceHistory, 2)
}

func TestLoadSeedWithoutTransactions(t *testing.T) {
	store, err := LoadSeed(strings.NewReader(`{"accounts": [{"id": 9, "email": "c@x.com", "balance": 0}]}`))
	require.NoError(t, err)

	record, err := store.GetTransactions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, record.RecentTransactions)
	assert.Empty(t, record.RecentTransactions)

	added := store.AddAccount("d@x.com", decimal.Zero)
	assert.Equal(t, "10", added.ID, "ids continue after seeded ones")
}

func TestLoadSeedRejectsGarbage(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`{"users": [`))
	assert.Error(t, err)
}

func TestFailNextIsOneShot(t *testing.T) {
	store := NewMemoryLedgerStore()
	store.AddAccount("a@x.com", decimal.NewFromInt(5))
	boom := errors.New("boom")

	store.FailNext(OpFindAccounts, boom)

	_, err := store.FindAccountsByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, boom)

	found, err := store.FindAccountsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestPatchUnknownAccount(t *testing.T) {
	store := NewMemoryLedgerStore()

	_, err := store.PatchAccountBalance(context.Background(), "404", decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestMissingCollectionIsNil(t *testing.T) {
	store := NewMemoryLedgerStore()
	store.SetEntries(nil)

	record, err := store.GetTransactions(context.Background())
	require.NoError(t, err)
	assert.Nil(t, record.RecentTransactions)
}

func TestReadsAreCopies(t *testing.T) {
	store := NewMemoryLedgerStore()
	_, err := store.PatchTransactions(context.Background(), []models.LedgerEntry{{ID: 1, Email: "a@x.com"}})
	require.NoError(t, err)

	record, err := store.GetTransactions(context.Background())
	require.NoError(t, err)
	record.RecentTransactions[0].Email = "changed"

	assert.Equal(t, "a@x.com", store.Entries()[0].Email)
}

func TestCanceledContext(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetTransactions(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
