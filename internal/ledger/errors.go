package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a failure so callers can tell business-rule
// rejections from transport problems without matching on strings.
type ErrorKind string

const (
	KindNotFound              ErrorKind = "not_found"
	KindInvalidParameters     ErrorKind = "invalid_parameters"
	KindInsufficientFunds     ErrorKind = "insufficient_funds"
	KindAccountMissing        ErrorKind = "account_missing"
	KindTransportFailure      ErrorKind = "transport_failure"
	KindInvalidServerResponse ErrorKind = "invalid_server_response"
	KindPartialApplication    ErrorKind = "partial_application"
)

// Error is returned by every Ledger operation. Error() yields the short
// human readable message; Kind is available through errors.As or by
// comparing against the sentinels with errors.Is.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of op or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidParameters     = &Error{Kind: KindInvalidParameters}
	ErrInsufficientFunds     = &Error{Kind: KindInsufficientFunds}
	ErrAccountMissing        = &Error{Kind: KindAccountMissing}
	ErrTransportFailure      = &Error{Kind: KindTransportFailure}
	ErrInvalidServerResponse = &Error{Kind: KindInvalidServerResponse}
	ErrPartialApplication    = &Error{Kind: KindPartialApplication}
)

// KindOf returns the kind of err, or "" when err did not come from a Ledger.
// A MutationError is checked first since it wraps the *Error of each
// failed write.
func KindOf(err error) ErrorKind {
	var m *MutationError
	if errors.As(err, &m) {
		return m.Kind()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Mutation names one remote write inside a multi-write operation.
type Mutation string

const (
	MutationDebitBalance  Mutation = "debit_balance"
	MutationCreditBalance Mutation = "credit_balance"
	MutationDebitEntry    Mutation = "debit_entry"
	MutationCreditEntry   Mutation = "credit_entry"
	MutationBalance       Mutation = "balance"
	MutationEntry         Mutation = "entry"
)

// MutationError reports the outcome of a group of independent writes where
// at least one failed. Writes listed in Committed were applied and are not
// rolled back, so the store may now hold a partial result.
type MutationError struct {
	Op        string
	Committed []Mutation
	Failed    map[Mutation]error
}

// Kind is KindPartialApplication when anything committed and
// KindTransportFailure when nothing did.
func (e *MutationError) Kind() ErrorKind {
	if len(e.Committed) > 0 {
		return KindPartialApplication
	}
	return KindTransportFailure
}

func (e *MutationError) Partial() bool { return len(e.Committed) > 0 }

func (e *MutationError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for m := range e.Failed {
		failed = append(failed, string(m))
	}
	sort.Strings(failed)

	if e.Partial() {
		committed := make([]string, 0, len(e.Committed))
		for _, m := range e.Committed {
			committed = append(committed, string(m))
		}
		return fmt.Sprintf("%s partially applied: %s failed, %s committed",
			e.Op, strings.Join(failed, ", "), strings.Join(committed, ", "))
	}
	return fmt.Sprintf("%s failed. Please try again.", e.Op)
}

// Unwrap returns the store failures behind each failed write, never their
// *Error wrappers, so errors.Is against a kind sentinel only ever sees the
// group's own kind.
func (e *MutationError) Unwrap() []error {
	names := make([]string, 0, len(e.Failed))
	for m := range e.Failed {
		names = append(names, string(m))
	}
	sort.Strings(names)

	causes := make([]error, 0, len(names))
	for _, name := range names {
		err := e.Failed[Mutation(name)]
		var kindErr *Error
		if errors.As(err, &kindErr) {
			err = kindErr.Err
		}
		if err != nil {
			causes = append(causes, err)
		}
	}
	return causes
}

func (e *MutationError) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind() && t.Op == "" && t.Message == ""
}
