// Package ledger implements the transfer engine that reads balances,
// validates transfers, patches balances and appends ledger entries
// against a store that offers no multi-record transactions.
//
// Multi-write operations fan their writes out concurrently and report
// every write that committed when any of them fails. Nothing is rolled
// back.
//
// Appends to the entry collection always pass through a single writer
// per Ledger, so one engine never loses its own entries. Two engines
// sharing a store still can: each reads the collection, picks the same
// next identity and writes it back, and the later write wins. Balance
// updates are read-modify-write as well; WithSerializedWrites adds
// per-account locks for them within this process only.
package ledger

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
)

const (
	opResolve       = "resolve_account"
	opVerify        = "verify_recipient"
	opTransfer      = "transfer"
	opUpdateBalance = "update_balance"
	opAppend        = "append_entry"
	opDashboard     = "dashboard"
	opRecent        = "recent_transactions"
	opHistory       = "balance_history"
	opCurrent       = "current_account"
	opSend          = "send"
)

// Observer receives one call per public operation. outcome is "ok" or the
// ErrorKind of the failure.
type Observer interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
}

// Ledger is the transfer engine. The zero value is not usable; build one
// with NewLedger.
type Ledger struct {
	store     interfaces.LedgerStore    // accounts and transactions resources, can be any storage implementation
	tracker   interfaces.RequestTracker // busy flag shown while a transfer is in flight
	publisher interfaces.EventPublisher // completed transfers are announced here, failures only logged
	session   interfaces.SessionCache   // resolves the signed-in account
	observer  Observer
	logger    zerolog.Logger
	now       func() time.Time // entry dates and the dashboard month

	serialize bool                   // lock accounts around the balance read-validate-write
	muMap     map[string]*sync.Mutex // per-account locks, keyed by email
	mapMu     sync.Mutex             // protects muMap
	appendMu  sync.Mutex             // single writer for the entry collection
}

type Option func(*Ledger)

func WithTracker(t interfaces.RequestTracker) Option {
	return func(l *Ledger) { l.tracker = t }
}

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithSession(s interfaces.SessionCache) Option {
	return func(l *Ledger) { l.session = s }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now for entry timestamps and the dashboard month window.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSerializedWrites makes transfers and balance updates lock the
// accounts they touch for the whole read-validate-write sequence.
func WithSerializedWrites(enabled bool) Option {
	return func(l *Ledger) { l.serialize = enabled }
}

// NewLedger creates a Ledger over store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
		muMap:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// track opens a tracking token for op and returns the func that closes it.
// The closer reads *errp, so callers defer it with a pointer to their
// named error result.
func (l *Ledger) track(op string) func(errp *error) {
	token := op + "-" + uuid.NewString()
	start := time.Now()
	if l.tracker != nil {
		l.tracker.Begin(token)
	}

	return func(errp *error) {
		if l.tracker != nil {
			l.tracker.End(token)
		}
		if l.observer == nil {
			return
		}
		outcome := "ok"
		if errp != nil && *errp != nil {
			if kind := KindOf(*errp); kind != "" {
				outcome = string(kind)
			} else {
				outcome = "error"
			}
		}
		l.observer.ObserveOperation(op, outcome, time.Since(start))
	}
}

func (l *Ledger) getAccountLock(email string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[email]; !exists {
		l.muMap[email] = &sync.Mutex{}
	}
	return l.muMap[email]
}

// lockAccounts locks every distinct email in sorted order to avoid
// deadlocks and returns the matching unlock func. It is a no-op unless
// serialized writes are enabled.
func (l *Ledger) lockAccounts(emails ...string) func() {
	if !l.serialize {
		return func() {}
	}

	// Lock in order to avoid deadlocks
	sorted := append([]string(nil), emails...)
	sort.Strings(sorted)

	locks := make([]*sync.Mutex, 0, len(sorted))
	for i, email := range sorted {
		// a self transfer names the same account twice
		if i > 0 && sorted[i-1] == email {
			continue
		}
		mu := l.getAccountLock(email)
		mu.Lock()
		locks = append(locks, mu)
	}

	// Unlock in reverse order
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// storeError maps a store failure to the engine's taxonomy.
func storeError(op string, err error) *Error {
	if errors.Is(err, interfaces.ErrMalformedRecord) {
		return newError(KindInvalidServerResponse, op, "Invalid server response", err)
	}
	return newError(KindTransportFailure, op, "Operation failed. Please try again.", err)
}
