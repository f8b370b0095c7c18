package session

import (
	"context"

	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
)

// Static is a session fixed at construction, for the CLI and tests.
// An empty email means no session.
type Static struct {
	account models.Account
}

func NewStatic(email string) Static {
	return Static{account: models.Account{Email: email}}
}

func (s Static) CurrentAccount(context.Context) (models.Account, error) {
	if s.account.Email == "" {
		return models.Account{}, interfaces.ErrNoSession
	}
	return s.account, nil
}

var _ interfaces.SessionCache = Static{}
