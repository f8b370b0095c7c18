package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// localTimestampLayout labels deposit and withdrawal entries.
const localTimestampLayout = "1/2/2006, 3:04:05 PM"

type mutationStep struct {
	name Mutation
	run  func(ctx context.Context) error
}

// TransferMoney moves amount from one account to another.
//
// Both accounts are read concurrently, the sender's balance is checked,
// and then four writes go out at once: both balance patches and the
// debit and credit entries. The call succeeds only if all four do. When
// some fail the returned *MutationError lists what committed; those
// writes stay applied.
func (l *Ledger) TransferMoney(ctx context.Context, fromEmail, toEmail string, amount decimal.Decimal, description string) (err error) {
	defer l.track(opTransfer)(&err)

	if fromEmail == "" || toEmail == "" || !amount.IsPositive() {
		return newError(KindInvalidParameters, opTransfer, "Invalid transfer parameters", nil)
	}
	if fromEmail == toEmail {
		return newError(KindInvalidParameters, opTransfer, "Cannot transfer money to the same account", nil)
	}

	unlock := l.lockAccounts(fromEmail, toEmail)
	defer unlock()

	var (
		sender, recipient       models.Account
		senderErr, recipientErr error
		g                       errgroup.Group
	)
	g.Go(func() error {
		sender, senderErr = l.resolveAccount(ctx, fromEmail)
		return senderErr
	})
	g.Go(func() error {
		recipient, recipientErr = l.resolveAccount(ctx, toEmail)
		return recipientErr
	})
	if err := g.Wait(); err != nil {
		if errors.Is(senderErr, ErrNotFound) || errors.Is(recipientErr, ErrNotFound) {
			return newError(KindAccountMissing, opTransfer, "One or both users not found", err)
		}
		return err
	}

	if sender.Balance.LessThan(amount) {
		return newError(KindInsufficientFunds, opTransfer, "Insufficient balance", nil)
	}

	transfer := models.Transfer{
		ID:          uuid.NewString(),
		FromEmail:   fromEmail,
		ToEmail:     toEmail,
		Amount:      amount,
		Description: description,
		CreatedAt:   l.now().UTC(),
	}
	debit := models.LedgerEntry{
		Kind:        models.EntryDebit,
		Email:       fromEmail,
		Amount:      amount,
		Description: fmt.Sprintf("Transfer to %s: %s", toEmail, description),
		Date:        transfer.CreatedAt,
	}
	credit := models.LedgerEntry{
		Kind:        models.EntryCredit,
		Email:       toEmail,
		Amount:      amount,
		Description: fmt.Sprintf("Received from %s: %s", fromEmail, description),
		Date:        transfer.CreatedAt,
	}

	err = l.applyMutations(ctx, opTransfer,
		l.balanceStep(opTransfer, MutationDebitBalance, sender.ID, sender.Balance.Sub(amount)),
		l.balanceStep(opTransfer, MutationCreditBalance, recipient.ID, recipient.Balance.Add(amount)),
		l.entryStep(MutationDebitEntry, debit),
		l.entryStep(MutationCreditEntry, credit),
	)
	if err != nil {
		return err
	}

	l.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("from", fromEmail).
		Str("to", toEmail).
		Stringer("amount", amount).
		Msg("transfer completed")

	l.publishTransfer(ctx, transfer)
	return nil
}

// UpdateBalance credits or debits a single account and records one entry
// for it. A debit that would take the balance below zero is rejected
// before anything is written.
func (l *Ledger) UpdateBalance(ctx context.Context, email string, amount decimal.Decimal, kind models.EntryKind) (err error) {
	defer l.track(opUpdateBalance)(&err)

	if email == "" || !amount.IsPositive() || !kind.Valid() {
		return newError(KindInvalidParameters, opUpdateBalance, "Invalid parameters", nil)
	}

	unlock := l.lockAccounts(email)
	defer unlock()

	account, err := l.resolveAccount(ctx, email)
	if err != nil {
		return err
	}

	newBalance := account.Balance.Add(amount)
	label := "Deposit"
	if kind == models.EntryDebit {
		newBalance = account.Balance.Sub(amount)
		label = "Withdrawal"
	}
	if kind == models.EntryDebit && newBalance.IsNegative() {
		return newError(KindInsufficientFunds, opUpdateBalance, "Insufficient balance", nil)
	}

	now := l.now()
	entry := models.LedgerEntry{
		Kind:        kind,
		Email:       email,
		Amount:      amount,
		Description: fmt.Sprintf("%s - %s", label, now.Local().Format(localTimestampLayout)),
		Date:        now.UTC(),
	}

	return l.applyMutations(ctx, opUpdateBalance,
		l.balanceStep(opUpdateBalance, MutationBalance, account.ID, newBalance),
		l.entryStep(MutationEntry, entry),
	)
}

// AppendLedgerEntry assigns entry the next identity and writes it at the
// head of the collection. The whole collection is read and written back.
// Appends from this Ledger are serialized; an append from another writer
// landing between the read and the write is overwritten.
func (l *Ledger) AppendLedgerEntry(ctx context.Context, entry models.LedgerEntry) (persisted models.LedgerEntry, err error) {
	defer l.track(opAppend)(&err)

	if entry.Email == "" || !entry.Amount.IsPositive() || !entry.Kind.Valid() {
		return models.LedgerEntry{}, newError(KindInvalidParameters, opAppend, "Invalid parameters", nil)
	}
	if entry.Date.IsZero() {
		entry.Date = l.now().UTC()
	}

	return l.appendEntry(ctx, entry)
}

func (l *Ledger) appendEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	record, err := l.store.GetTransactions(ctx)
	if err != nil {
		return models.LedgerEntry{}, storeError(opAppend, err)
	}
	if record.RecentTransactions == nil {
		return models.LedgerEntry{}, newError(KindInvalidServerResponse, opAppend, "Invalid transaction data", nil)
	}

	entry.ID = nextEntryID(record.RecentTransactions)

	updated := make([]models.LedgerEntry, 0, len(record.RecentTransactions)+1)
	updated = append(updated, entry)
	updated = append(updated, record.RecentTransactions...)

	if _, err := l.store.PatchTransactions(ctx, updated); err != nil {
		return models.LedgerEntry{}, storeError(opAppend, err)
	}
	return entry, nil
}

func nextEntryID(entries []models.LedgerEntry) int64 {
	var highest int64
	for _, e := range entries {
		if e.ID > highest {
			highest = e.ID
		}
	}
	return highest + 1
}

// balanceStep patches one account's balance. op names the public
// operation the write belongs to.
func (l *Ledger) balanceStep(op string, name Mutation, accountID string, balance decimal.Decimal) mutationStep {
	return mutationStep{name: name, run: func(ctx context.Context) error {
		if _, err := l.store.PatchAccountBalance(ctx, accountID, balance); err != nil {
			return storeError(op, err)
		}
		return nil
	}}
}

func (l *Ledger) entryStep(name Mutation, entry models.LedgerEntry) mutationStep {
	return mutationStep{name: name, run: func(ctx context.Context) error {
		_, err := l.appendEntry(ctx, entry)
		return err
	}}
}

// applyMutations runs every step concurrently and waits for all of them.
// A failing step does not cancel its siblings.
func (l *Ledger) applyMutations(ctx context.Context, op string, steps ...mutationStep) error {
	results := make([]error, len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		i, step := i, step
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = step.run(ctx)
		}()
	}
	wg.Wait()

	mErr := &MutationError{Op: op, Failed: make(map[Mutation]error)}
	for i, step := range steps {
		if results[i] != nil {
			mErr.Failed[step.name] = results[i]
			continue
		}
		mErr.Committed = append(mErr.Committed, step.name)
	}
	if len(mErr.Failed) == 0 {
		return nil
	}

	event := l.logger.Error().Str("op", op).Bool("partial", mErr.Partial())
	for name, err := range mErr.Failed {
		event = event.AnErr(string(name), err)
	}
	event.Msg("mutation group failed")

	return mErr
}

func (l *Ledger) publishTransfer(ctx context.Context, t models.Transfer) {
	if l.publisher == nil {
		return
	}

	event := events.TransferCompleted{
		TransferID:  t.ID,
		FromEmail:   t.FromEmail,
		ToEmail:     t.ToEmail,
		Amount:      t.Amount,
		Description: t.Description,
		OccurredAt:  t.CreatedAt,
	}
	if err := l.publisher.Publish(ctx, events.TransferCompletedTopic, t.ID, event); err != nil {
		l.logger.Warn().Err(err).Str("transfer_id", t.ID).Msg("failed to publish transfer event")
	}
}
