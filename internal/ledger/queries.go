package ledger

import (
	"context"
	"errors"
	"slices"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RecentLimit caps RecentTransactions.
const RecentLimit = 5

// RecipientStatus separates "absent" from "could not check".
type RecipientStatus int

const (
	RecipientUnknown RecipientStatus = iota
	RecipientFound
	RecipientNotFound
)

func (s RecipientStatus) String() string {
	switch s {
	case RecipientFound:
		return "found"
	case RecipientNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ResolveAccount returns the account registered under email. If the store
// returns several, the first one wins.
func (l *Ledger) ResolveAccount(ctx context.Context, email string) (account models.Account, err error) {
	defer l.track(opResolve)(&err)

	if email == "" {
		return models.Account{}, newError(KindInvalidParameters, opResolve, "Email is required", nil)
	}
	return l.resolveAccount(ctx, email)
}

func (l *Ledger) resolveAccount(ctx context.Context, email string) (models.Account, error) {
	accounts, err := l.store.FindAccountsByEmail(ctx, email)
	if err != nil {
		return models.Account{}, storeError(opResolve, err)
	}
	if len(accounts) == 0 {
		return models.Account{}, newError(KindNotFound, opResolve, "User not found", nil)
	}
	if len(accounts) > 1 {
		l.logger.Warn().Str("email", email).Int("matches", len(accounts)).Msg("email matched several accounts, using the first")
	}
	return accounts[0], nil
}

// VerifyRecipient reports whether an account exists for email. Any
// failure, including a transport error, yields false; use CheckRecipient
// to tell the two apart.
func (l *Ledger) VerifyRecipient(ctx context.Context, email string) bool {
	status, _ := l.CheckRecipient(ctx, email)
	return status == RecipientFound
}

// CheckRecipient looks email up and says whether it was found, not found,
// or could not be checked. Only the last case carries an error.
func (l *Ledger) CheckRecipient(ctx context.Context, email string) (status RecipientStatus, err error) {
	defer l.track(opVerify)(&err)

	if email == "" {
		return RecipientUnknown, newError(KindInvalidParameters, opVerify, "Email is required", nil)
	}

	_, err = l.resolveAccount(ctx, email)
	switch {
	case err == nil:
		return RecipientFound, nil
	case errors.Is(err, ErrNotFound):
		return RecipientNotFound, nil
	default:
		return RecipientUnknown, err
	}
}

// DashboardData totals the account's balance with its credits and debits
// for the current calendar month, in the location of the engine clock.
func (l *Ledger) DashboardData(ctx context.Context, email string) (data models.DashboardData, err error) {
	defer l.track(opDashboard)(&err)

	if email == "" {
		return models.DashboardData{}, newError(KindInvalidParameters, opDashboard, "Email is required", nil)
	}
	return l.dashboard(ctx, email)
}

func (l *Ledger) dashboard(ctx context.Context, email string) (models.DashboardData, error) {
	var (
		account models.Account
		record  models.TransactionsRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = l.resolveAccount(gctx, email)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = l.store.GetTransactions(gctx)
		if err != nil {
			return storeError(opDashboard, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.DashboardData{}, err
	}

	if record.RecentTransactions == nil {
		return models.DashboardData{}, newError(KindInvalidServerResponse, opDashboard, "Invalid transaction data received", nil)
	}

	now := l.now()
	year, month, _ := now.Date()
	loc := now.Location()

	income, expenses := decimal.Zero, decimal.Zero
	for _, entry := range record.RecentTransactions {
		if entry.Email != email {
			continue
		}
		y, m, _ := entry.Date.In(loc).Date()
		if y != year || m != month {
			continue
		}
		switch entry.Kind {
		case models.EntryCredit:
			income = income.Add(entry.Amount)
		case models.EntryDebit:
			expenses = expenses.Add(entry.Amount)
		}
	}

	return models.DashboardData{
		TotalBalance:    account.Balance,
		MonthlyIncome:   income,
		MonthlyExpenses: expenses,
	}, nil
}

// RecentTransactions returns up to RecentLimit entries for email, newest
// first. Read failures are logged and produce an empty result.
func (l *Ledger) RecentTransactions(ctx context.Context, email string) (entries []models.LedgerEntry, err error) {
	defer l.track(opRecent)(&err)

	if email == "" {
		return nil, newError(KindInvalidParameters, opRecent, "Email is required", nil)
	}

	record, err := l.store.GetTransactions(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Str("email", email).Msg("recent transactions unavailable")
		return []models.LedgerEntry{}, nil
	}
	if record.RecentTransactions == nil {
		l.logger.Warn().Str("email", email).Msg("invalid transaction data received")
		return []models.LedgerEntry{}, nil
	}

	entries = make([]models.LedgerEntry, 0, RecentLimit)
	for _, entry := range record.RecentTransactions {
		if entry.Email == email {
			entries = append(entries, entry)
		}
	}
	slices.SortStableFunc(entries, func(a, b models.LedgerEntry) int {
		return b.Date.Compare(a.Date)
	})
	if len(entries) > RecentLimit {
		entries = entries[:RecentLimit]
	}
	return entries, nil
}

// BalanceHistory returns the stored balance series sorted by month,
// oldest first. It never fails: missing data or a read error give an
// empty series.
func (l *Ledger) BalanceHistory(ctx context.Context) []models.BalanceHistoryPoint {
	var err error
	defer l.track(opHistory)(&err)

	record, err := l.store.GetTransactions(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("error fetching balance history")
		err = storeError(opHistory, err)
		return []models.BalanceHistoryPoint{}
	}

	points := slices.Clone(record.BalanceHistory)
	if points == nil {
		return []models.BalanceHistoryPoint{}
	}
	sortByMonth(points)
	return points
}
