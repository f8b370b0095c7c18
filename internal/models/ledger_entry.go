package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the direction of a ledger entry relative to its account.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// Valid reports whether k is one of the two known kinds.
func (k EntryKind) Valid() bool {
	return k == EntryCredit || k == EntryDebit
}

// LedgerEntry represents a single immutable credit or debit for an account.
// ID is assigned when the entry is appended to the collection.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Kind        EntryKind       `json:"type"`
	Email       string          `json:"email"`
	Amount      decimal.Decimal `json:"amount"` // always positive
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// BalanceHistoryPoint is one labelled month of the balance series.
type BalanceHistoryPoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// TransactionsRecord is the aggregate record holding every ledger entry
// and the balance history series. A nil RecentTransactions means the
// field was absent from the stored record.
type TransactionsRecord struct {
	RecentTransactions []LedgerEntry
	BalanceHistory     []BalanceHistoryPoint
}
