package api

import (
	"encoding/json"
	"net/http"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/ledger"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind,omitempty"`
	Committed []ledger.Mutation `json:"committed,omitempty"`
	Failed    []ledger.Mutation `json:"failed,omitempty"`
}

func statusFor(kind ledger.ErrorKind) int {
	switch kind {
	case ledger.KindInvalidParameters:
		return http.StatusBadRequest
	case ledger.KindNotFound, ledger.KindAccountMissing:
		return http.StatusNotFound
	case ledger.KindInsufficientFunds:
		return http.StatusConflict
	case ledger.KindTransportFailure, ledger.KindInvalidServerResponse, ledger.KindPartialApplication:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Kind: string(ledger.KindInvalidParameters)})
}
