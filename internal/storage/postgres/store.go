// Package postgres stores accounts in a table and every ledger entry in a
// single jsonb aggregate row, so an append is still a whole-collection
// rewrite with no row-level concurrency control.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/wire"
	"github.com/shopspring/decimal"
)

// Schema creates the tables the store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id       TEXT PRIMARY KEY,
	email    TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	balance  NUMERIC NOT NULL DEFAULT 0,
	password TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS ledger_collections (
	id                  INT PRIMARY KEY,
	recent_transactions JSONB,
	balance_history     JSONB
);
-- the aggregate row starts empty, never absent
INSERT INTO ledger_collections (id, recent_transactions, balance_history)
VALUES (1, '[]'::jsonb, '[]'::jsonb)
ON CONFLICT (id) DO NOTHING;`

const collectionID = 1

const (
	findAccountsQuery = `SELECT id, email, name, balance, password FROM accounts
	WHERE email = $1 ORDER BY id`

	patchBalanceQuery = `UPDATE accounts SET balance = $2 WHERE id = $1
	RETURNING id, email, name, balance, password`

	getCollectionQuery = `SELECT recent_transactions, balance_history FROM ledger_collections
	WHERE id = $1`

	putCollectionQuery = `INSERT INTO ledger_collections (id, recent_transactions) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET recent_transactions = EXCLUDED.recent_transactions
	RETURNING recent_transactions`
)

// ErrAccountNotFound is returned when a balance patch names no row.
var ErrAccountNotFound = errors.New("account not found")

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies Schema.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *PostgresLedgerStore) FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error) {
	rows, err := p.db.QueryContext(ctx, findAccountsQuery, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Email, &account.Name, &account.Balance, &account.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedRecord, err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *PostgresLedgerStore) PatchAccountBalance(ctx context.Context, id string, balance decimal.Decimal) (models.Account, error) {
	var account models.Account
	err := p.db.QueryRowContext(ctx, patchBalanceQuery, id, balance).
		Scan(&account.ID, &account.Email, &account.Name, &account.Balance, &account.Password)
	if err == sql.ErrNoRows {
		return models.Account{}, fmt.Errorf("account %s: %w", id, ErrAccountNotFound)
	}
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// GetTransactions reads the aggregate row. A missing row or a NULL column
// reads as an absent collection.
func (p *PostgresLedgerStore) GetTransactions(ctx context.Context) (models.TransactionsRecord, error) {
	var recent, history []byte
	err := p.db.QueryRowContext(ctx, getCollectionQuery, collectionID).Scan(&recent, &history)
	if err == sql.ErrNoRows {
		return models.TransactionsRecord{}, nil
	}
	if err != nil {
		return models.TransactionsRecord{}, err
	}

	var doc wire.TransactionsDoc
	if recent != nil {
		var entries []wire.Entry
		if err := json.Unmarshal(recent, &entries); err != nil {
			return models.TransactionsRecord{}, fmt.Errorf("%w: recent_transactions: %v", interfaces.ErrMalformedRecord, err)
		}
		if entries == nil {
			entries = []wire.Entry{}
		}
		doc.RecentTransactions = &entries
	}
	if history != nil {
		if err := json.Unmarshal(history, &doc.BalanceHistory); err != nil {
			return models.TransactionsRecord{}, fmt.Errorf("%w: balance_history: %v", interfaces.ErrMalformedRecord, err)
		}
	}
	return doc.Record(), nil
}

// PatchTransactions replaces the whole entry array in one statement.
func (p *PostgresLedgerStore) PatchTransactions(ctx context.Context, entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
	payload, err := json.Marshal(wire.FromEntries(entries))
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}

	var stored []byte
	if err := p.db.QueryRowContext(ctx, putCollectionQuery, collectionID, payload).Scan(&stored); err != nil {
		return nil, err
	}

	var decoded []wire.Entry
	if err := json.Unmarshal(stored, &decoded); err != nil {
		return nil, fmt.Errorf("%w: recent_transactions: %v", interfaces.ErrMalformedRecord, err)
	}
	return wire.ToEntries(decoded), nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
