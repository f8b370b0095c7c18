// Package remote talks to the HTTP account/ledger resource:
//
//	GET   {base}/accounts?email=<e>   -> [account...]
//	PATCH {base}/accounts/<id>        {"balance": n} -> account
//	GET   {base}/transactions         -> {"recentTransactions": [...], "balanceHistory": [...]}
//	PATCH {base}/transactions         {"recentTransactions": [...]} -> record
//
// The resource has no transactions and no concurrency tokens; this client
// adds none. Requests are rate limited and pass through a circuit breaker
// that opens on consecutive transport or 5xx failures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/wire"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultAccountsPath     = "/accounts"
	DefaultTransactionsPath = "/transactions"
	DefaultTimeout          = 10 * time.Second
	DefaultBreakerFailures  = 5
	DefaultBreakerCooldown  = 30 * time.Second

	maxErrorBody = 512
)

type Config struct {
	BaseURL          string
	AccountsPath     string
	TransactionsPath string
	Timeout          time.Duration
	RateLimit        float64 // requests per second, 0 disables
	Burst            int
	BreakerFailures  uint32
	BreakerCooldown  time.Duration
	HTTPClient       *http.Client
	Logger           zerolog.Logger
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Store struct {
	base             string
	accountsPath     string
	transactionsPath string
	timeout          time.Duration
	client           *http.Client
	limiter          *rate.Limiter
	breaker          *gobreaker.CircuitBreaker
	logger           zerolog.Logger
}

func NewStore(cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q", cfg.BaseURL)
	}

	s := &Store{
		base:             strings.TrimRight(cfg.BaseURL, "/"),
		accountsPath:     pathOr(cfg.AccountsPath, DefaultAccountsPath),
		transactionsPath: pathOr(cfg.TransactionsPath, DefaultTransactionsPath),
		timeout:          cfg.Timeout,
		client:           cfg.HTTPClient,
		logger:           cfg.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger-remote",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})
	return s, nil
}

func pathOr(p, fallback string) string {
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// countsAsSuccess keeps answers the server gave on purpose, 4xx and
// undecodable bodies, from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, interfaces.ErrMalformedRecord) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code < http.StatusInternalServerError
	}
	return false
}

func (s *Store) FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error) {
	var found []wire.Account
	query := url.Values{"email": []string{email}}
	if err := s.do(ctx, http.MethodGet, s.accountsPath, query, nil, &found); err != nil {
		return nil, err
	}

	accounts := make([]models.Account, len(found))
	for i, a := range found {
		accounts[i] = a.Model()
	}
	return accounts, nil
}

func (s *Store) PatchAccountBalance(ctx context.Context, id string, balance decimal.Decimal) (models.Account, error) {
	var updated wire.Account
	path := s.accountsPath + "/" + url.PathEscape(id)
	if err := s.do(ctx, http.MethodPatch, path, nil, wire.BalancePatch{Balance: wire.NewAmount(balance)}, &updated); err != nil {
		return models.Account{}, err
	}
	return updated.Model(), nil
}

func (s *Store) GetTransactions(ctx context.Context) (models.TransactionsRecord, error) {
	var doc wire.TransactionsDoc
	if err := s.do(ctx, http.MethodGet, s.transactionsPath, nil, nil, &doc); err != nil {
		return models.TransactionsRecord{}, err
	}
	return doc.Record(), nil
}

func (s *Store) PatchTransactions(ctx context.Context, entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
	var doc wire.TransactionsDoc
	body := wire.TransactionsPatch{RecentTransactions: wire.FromEntries(entries)}
	if err := s.do(ctx, http.MethodPatch, s.transactionsPath, nil, body, &doc); err != nil {
		return nil, err
	}
	if doc.RecentTransactions == nil {
		return nil, fmt.Errorf("%w: response has no recentTransactions", interfaces.ErrMalformedRecord)
	}
	return wire.ToEntries(*doc.RecentTransactions), nil
}

func (s *Store) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.roundTrip(ctx, method, path, query, body, out)
	})
	return err
}

func (s *Store) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("remote request failed")
		return err
	}
	defer resp.Body.Close()

	s.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", interfaces.ErrMalformedRecord, method, path, err)
	}
	return nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
