package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/wire"
)

// seedFile is the layout of a json-server db.json. Older deployments keep
// accounts under "users".
type seedFile struct {
	Users        []wire.Account       `json:"users"`
	Accounts     []wire.Account       `json:"accounts"`
	Transactions wire.TransactionsDoc `json:"transactions"`
}

// LoadSeed reads a db.json document into a new store.
func LoadSeed(r io.Reader) (*MemoryLedgerStore, error) {
	var seed seedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	store := NewMemoryLedgerStore()
	for _, a := range append(seed.Users, seed.Accounts...) {
		store.PutAccount(a.Model())
	}

	record := seed.Transactions.Record()
	if record.RecentTransactions == nil {
		record.RecentTransactions = []models.LedgerEntry{}
	}
	store.SetEntries(record.RecentTransactions)
	store.SetBalanceHistory(record.BalanceHistory)
	return store, nil
}

// LoadSeedFile is LoadSeed over the file at path.
func LoadSeedFile(path string) (*MemoryLedgerStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadSeed(f)
}
