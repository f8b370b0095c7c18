package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
)

// ErrNoSession is returned when no identity has been cached yet.
var ErrNoSession = errors.New("no current session")

// SessionCache exposes the identity cached by the login flow.
// Implementations are read-only from this module's point of view.
type SessionCache interface {
	CurrentAccount(ctx context.Context) (models.Account, error)
}

// RequestTracker turns overlapping operations into a single busy signal.
type RequestTracker interface {
	Begin(token string)
	End(token string)
}
