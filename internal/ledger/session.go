package ledger

import (
	"context"
	"errors"

	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// sessionIdentity reads the cached identity. Only its email is trusted;
// the balance it carries may be stale.
func (l *Ledger) sessionIdentity(ctx context.Context, op string) (models.Account, error) {
	if l.session == nil {
		return models.Account{}, newError(KindNotFound, op, "No active session", interfaces.ErrNoSession)
	}

	account, err := l.session.CurrentAccount(ctx)
	switch {
	case errors.Is(err, interfaces.ErrNoSession):
		return models.Account{}, newError(KindNotFound, op, "No active session", err)
	case err != nil:
		return models.Account{}, newError(KindTransportFailure, op, "Could not read session", err)
	case account.Email == "":
		return models.Account{}, newError(KindNotFound, op, "No active session", interfaces.ErrNoSession)
	}
	return account, nil
}

// CurrentAccount returns the session's account as the store holds it now.
func (l *Ledger) CurrentAccount(ctx context.Context) (account models.Account, err error) {
	defer l.track(opCurrent)(&err)

	identity, err := l.sessionIdentity(ctx, opCurrent)
	if err != nil {
		return models.Account{}, err
	}
	return l.resolveAccount(ctx, identity.Email)
}

// CurrentDashboard is DashboardData for the session's account.
func (l *Ledger) CurrentDashboard(ctx context.Context) (data models.DashboardData, err error) {
	defer l.track(opDashboard)(&err)

	identity, err := l.sessionIdentity(ctx, opDashboard)
	if err != nil {
		return models.DashboardData{}, err
	}
	return l.dashboard(ctx, identity.Email)
}

// Send transfers from the session's account to toEmail.
func (l *Ledger) Send(ctx context.Context, toEmail string, amount decimal.Decimal, description string) (err error) {
	defer l.track(opSend)(&err)

	identity, err := l.sessionIdentity(ctx, opSend)
	if err != nil {
		return err
	}
	return l.TransferMoney(ctx, identity.Email, toEmail, amount, description)
}
