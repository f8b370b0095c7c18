// Package wire holds the JSON shapes of the remote account and
// transactions records. Amounts travel as bare JSON numbers, account ids
// may be numbers or strings, and entry dates may omit the time part.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ID is an account identity that accepts both 7 and "7".
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Amount is a decimal encoded as a JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is an entry date. It is written as an ISO instant in UTC.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("date: unrecognised timestamp %q", s)
}

type Account struct {
	ID       ID     `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Balance  Amount `json:"balance"`
	Password string `json:"password,omitempty"`
}

func (a Account) Model() models.Account {
	return models.Account{
		ID:       string(a.ID),
		Email:    a.Email,
		Name:     a.Name,
		Balance:  a.Balance.Decimal,
		Password: a.Password,
	}
}

func FromAccount(a models.Account) Account {
	return Account{
		ID:       ID(a.ID),
		Email:    a.Email,
		Name:     a.Name,
		Balance:  NewAmount(a.Balance),
		Password: a.Password,
	}
}

type Entry struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Email       string    `json:"email"`
	Amount      Amount    `json:"amount"`
	Description string    `json:"description"`
	Date        Timestamp `json:"date"`
}

type HistoryPoint struct {
	Month  string `json:"month"`
	Amount Amount `json:"amount"`
}

// TransactionsDoc is the aggregate record. A nil RecentTransactions means
// the field was missing.
type TransactionsDoc struct {
	RecentTransactions *[]Entry      `json:"recentTransactions"`
	BalanceHistory     []HistoryPoint `json:"balanceHistory,omitempty"`
}

// BalancePatch is the body of an account balance update.
type BalancePatch struct {
	Balance Amount `json:"balance"`
}

// TransactionsPatch is the body of a collection rewrite.
type TransactionsPatch struct {
	RecentTransactions []Entry `json:"recentTransactions"`
}

func (d TransactionsDoc) Record() models.TransactionsRecord {
	record := models.TransactionsRecord{}
	if d.RecentTransactions != nil {
		record.RecentTransactions = ToEntries(*d.RecentTransactions)
	}
	if len(d.BalanceHistory) > 0 {
		record.BalanceHistory = make([]models.BalanceHistoryPoint, len(d.BalanceHistory))
		for i, p := range d.BalanceHistory {
			record.BalanceHistory[i] = models.BalanceHistoryPoint{Month: p.Month, Amount: p.Amount.Decimal}
		}
	}
	return record
}

func FromRecord(r models.TransactionsRecord) TransactionsDoc {
	doc := TransactionsDoc{}
	if r.RecentTransactions != nil {
		entries := FromEntries(r.RecentTransactions)
		doc.RecentTransactions = &entries
	}
	for _, p := range r.BalanceHistory {
		doc.BalanceHistory = append(doc.BalanceHistory, HistoryPoint{Month: p.Month, Amount: NewAmount(p.Amount)})
	}
	return doc
}

// ToEntries converts decoded entries. The result is never nil.
func ToEntries(in []Entry) []models.LedgerEntry {
	out := make([]models.LedgerEntry, len(in))
	for i, e := range in {
		out[i] = models.LedgerEntry{
			ID:          e.ID,
			Kind:        models.EntryKind(e.Type),
			Email:       e.Email,
			Amount:      e.Amount.Decimal,
			Description: e.Description,
			Date:        e.Date.Time,
		}
	}
	return out
}

func FromEntries(in []models.LedgerEntry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{
			ID:          e.ID,
			Type:        string(e.Kind),
			Email:       e.Email,
			Amount:      NewAmount(e.Amount),
			Description: e.Description,
			Date:        Timestamp{Time: e.Date},
		}
	}
	return out
}
