package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ErrMalformedRecord is returned by a store when the backing record could
// not be decoded into the expected shape.
var ErrMalformedRecord = errors.New("malformed record")

// AccountStore reads and patches account records. No call offers
// atomicity across records or any concurrency token.
type AccountStore interface {
	FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error)
	PatchAccountBalance(ctx context.Context, id string, balance decimal.Decimal) (models.Account, error)
}

// TransactionStore reads and rewrites the single aggregate record that
// holds every ledger entry. PatchTransactions replaces the whole
// recentTransactions array and returns what the store now holds.
type TransactionStore interface {
	GetTransactions(ctx context.Context) (models.TransactionsRecord, error)
	PatchTransactions(ctx context.Context, entries []models.LedgerEntry) ([]models.LedgerEntry, error)
}

type LedgerStore interface {
	AccountStore
	TransactionStore
}
