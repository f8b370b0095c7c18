package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Op names one store call for failure injection.
type Op string

const (
	OpFindAccounts      Op = "find_accounts"
	OpPatchBalance      Op = "patch_balance"
	OpGetTransactions   Op = "get_transactions"
	OpPatchTransactions Op = "patch_transactions"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Like the remote resource it stands in for, each call is atomic on its
// own but nothing spans calls.
type MemoryLedgerStore struct {
	mu       sync.Mutex // guards every field below; held for the whole of each call
	accounts []models.Account
	entries  []models.LedgerEntry // nil when the record has no recentTransactions
	history  []models.BalanceHistoryPoint
	nextID   int            // next numeric id handed out by AddAccount
	failures map[Op][]error // queued errors per call, consumed oldest first
}

// NewMemoryLedgerStore creates an empty store with an empty entry collection.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		entries:  make([]models.LedgerEntry, 0),
		nextID:   1,
		failures: make(map[Op][]error),
	}
}

// AddAccount registers an account and returns it with its assigned id.
func (m *MemoryLedgerStore) AddAccount(email string, balance decimal.Decimal) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	// ids are numeric strings, matching what the remote resource issues
	account := models.Account{ID: strconv.Itoa(m.nextID), Email: email, Balance: balance}
	m.nextID++
	m.accounts = append(m.accounts, account)
	return account
}

// PutAccount stores account as given, replacing one with the same id.
func (m *MemoryLedgerStore) PutAccount(account models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.accounts {
		if m.accounts[i].ID == account.ID {
			m.accounts[i] = account
			return
		}
	}
	m.accounts = append(m.accounts, account)
	// keep AddAccount from reusing an id that was put explicitly
	if n, err := strconv.Atoi(account.ID); err == nil && n >= m.nextID {
		m.nextID = n + 1
	}
}

// Account returns the stored account for email.
func (m *MemoryLedgerStore) Account(email string) (models.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Email == email {
			return a, true
		}
	}
	return models.Account{}, false
}

// Entries returns a copy of the entry collection.
func (m *MemoryLedgerStore) Entries() []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.LedgerEntry, len(m.entries))
	copy(copied, m.entries)
	return copied
}

// SetEntries replaces the collection. nil marks recentTransactions as absent.
func (m *MemoryLedgerStore) SetEntries(entries []models.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entries == nil {
		m.entries = nil
		return
	}
	m.entries = append(make([]models.LedgerEntry, 0, len(entries)), entries...)
}

// SetBalanceHistory replaces the stored monthly balance points.
func (m *MemoryLedgerStore) SetBalanceHistory(points []models.BalanceHistoryPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]models.BalanceHistoryPoint(nil), points...)
}

// FailNext makes the next call of op return err. Calls queue up.
func (m *MemoryLedgerStore) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[op] = append(m.failures[op], err)
}

// failure pops the next injected error for op. m.mu must be held.
func (m *MemoryLedgerStore) failure(op Op) error {
	queued := m.failures[op]
	if len(queued) == 0 {
		return nil
	}
	m.failures[op] = queued[1:]
	return queued[0]
}

// FindAccountsByEmail returns every account with email, in insertion order.
// An unknown email yields an empty result, not an error.
func (m *MemoryLedgerStore) FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// injected failures fire before any read or write
	if err := m.failure(OpFindAccounts); err != nil {
		return nil, err
	}

	var result []models.Account
	for _, a := range m.accounts {
		if a.Email == email {
			result = append(result, a)
		}
	}
	return result, nil
}

// PatchAccountBalance overwrites the balance of the account with id and
// returns the updated account.
func (m *MemoryLedgerStore) PatchAccountBalance(ctx context.Context, id string, balance decimal.Decimal) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure(OpPatchBalance); err != nil {
		return models.Account{}, err
	}

	for i := range m.accounts {
		if m.accounts[i].ID == id {
			m.accounts[i].Balance = balance
			return m.accounts[i], nil
		}
	}
	return models.Account{}, fmt.Errorf("account %s: not found", id)
}

// GetTransactions returns a snapshot of the aggregate record.
func (m *MemoryLedgerStore) GetTransactions(ctx context.Context) (models.TransactionsRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.TransactionsRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure(OpGetTransactions); err != nil {
		return models.TransactionsRecord{}, err
	}

	record := models.TransactionsRecord{
		BalanceHistory: append([]models.BalanceHistoryPoint(nil), m.history...),
	}
	// copy so callers can append to the slice without touching the store
	if m.entries != nil {
		record.RecentTransactions = append(make([]models.LedgerEntry, 0, len(m.entries)), m.entries...)
	}
	return record, nil
}

// PatchTransactions replaces the entry collection wholesale and returns
// what was stored. Concurrent callers overwrite each other, last write wins.
func (m *MemoryLedgerStore) PatchTransactions(ctx context.Context, entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure(OpPatchTransactions); err != nil {
		return nil, err
	}

	m.entries = append(make([]models.LedgerEntry, 0, len(entries)), entries...)

	copied := make([]models.LedgerEntry, len(m.entries))
	copy(copied, m.entries)
	return copied, nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
