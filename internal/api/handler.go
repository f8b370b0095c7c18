// Package api serves the transfer engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/ledger"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Engine is the subset of *ledger.Ledger the handlers call.
type Engine interface {
	TransferMoney(ctx context.Context, fromEmail, toEmail string, amount decimal.Decimal, description string) error
	Send(ctx context.Context, toEmail string, amount decimal.Decimal, description string) error
	UpdateBalance(ctx context.Context, email string, amount decimal.Decimal, kind models.EntryKind) error
	DashboardData(ctx context.Context, email string) (models.DashboardData, error)
	RecentTransactions(ctx context.Context, email string) ([]models.LedgerEntry, error)
	CheckRecipient(ctx context.Context, email string) (ledger.RecipientStatus, error)
	BalanceHistory(ctx context.Context) []models.BalanceHistoryPoint
	CurrentAccount(ctx context.Context) (models.Account, error)
	CurrentDashboard(ctx context.Context) (models.DashboardData, error)
}

// BusySource reports the aggregate in-flight signal.
type BusySource interface {
	Busy() bool
	InFlight() int
}

type Server struct {
	engine  Engine
	busy    BusySource
	metrics http.Handler
	logger  zerolog.Logger
}

type Option func(*Server)

func WithBusySource(b BusySource) Option {
	return func(s *Server) { s.busy = b }
}

func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router registers every route behind request logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/busy", s.busyState).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/transfers", s.transfer).Methods(http.MethodPost)
	r.HandleFunc("/balance-history", s.balanceHistory).Methods(http.MethodGet)

	accounts := r.PathPrefix("/accounts/{email}").Subrouter()
	accounts.HandleFunc("/deposit", s.adjust(models.EntryCredit)).Methods(http.MethodPost)
	accounts.HandleFunc("/withdraw", s.adjust(models.EntryDebit)).Methods(http.MethodPost)
	accounts.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)
	accounts.HandleFunc("/transactions", s.transactions).Methods(http.MethodGet)
	accounts.HandleFunc("/verify", s.verify).Methods(http.MethodGet)

	r.HandleFunc("/session/account", s.sessionAccount).Methods(http.MethodGet)
	r.HandleFunc("/session/dashboard", s.sessionDashboard).Methods(http.MethodGet)

	var h http.Handler = r
	h = hlog.AccessHandler(func(r *http.Request, status, size int, elapsed time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("elapsed", elapsed).
			Msg("request")
	})(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

type transferRequest struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// transfer moves money between two accounts. An empty from sends on
// behalf of the session account.
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	var err error
	if req.From == "" {
		err = s.engine.Send(r.Context(), req.To, req.Amount, req.Description)
	} else {
		err = s.engine.TransferMoney(r.Context(), req.From, req.To, req.Amount, req.Description)
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "completed"})
}

func (s *Server) adjust(kind models.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}

		if err := s.engine.UpdateBalance(r.Context(), mux.Vars(r)["email"], req.Amount, kind); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
	}
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.DashboardData(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.RecentTransactions(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// verify answers 200 with exists true or false, and 502 when the lookup
// itself failed.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	status, err := s.engine.CheckRecipient(r.Context(), email)
	if err != nil && status == ledger.RecipientUnknown {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":  email,
		"exists": status == ledger.RecipientFound,
	})
}

func (s *Server) balanceHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.BalanceHistory(r.Context()))
}

func (s *Server) sessionAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.engine.CurrentAccount(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	account.Password = ""
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) sessionDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.CurrentDashboard(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) busyState(w http.ResponseWriter, r *http.Request) {
	if s.busy == nil {
		writeJSON(w, http.StatusOK, map[string]any{"busy": false, "inFlight": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"busy": s.busy.Busy(), "inFlight": s.busy.InFlight()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeErr maps a ledger failure to a status code and logs anything that
// is not the caller's fault.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}

	body := errorResponse{Error: err.Error(), Kind: string(kind)}
	var mErr *ledger.MutationError
	if errors.As(err, &mErr) {
		body.Committed = mErr.Committed
		for m := range mErr.Failed {
			body.Failed = append(body.Failed, m)
		}
		sort.Slice(body.Failed, func(i, j int) bool { return body.Failed[i] < body.Failed[j] })
	}
	writeJSON(w, code, body)
}
