package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"otc-swaps/internal/escrow"
	"otc-swaps/internal/storage"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusForKind maps a lifecycle error kind to its HTTP status.
func StatusForKind(kind escrow.Kind) int {
	switch kind {
	case escrow.KindSwapNotFound:
		return http.StatusNotFound
	case escrow.KindSwapNotActive, escrow.KindSwapExpired, escrow.KindSwapAlreadyExists:
		return http.StatusConflict
	case escrow.KindBuyerNotWhitelisted, escrow.KindUnauthorizedCancellation, escrow.KindInvalidRecipientAddress:
		return http.StatusForbidden
	case escrow.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case escrow.KindInvalidAmount, escrow.KindEmptyWhitelist, escrow.KindInvalidExpiryTime,
		escrow.KindInvalidTokenMint, escrow.KindTokenAccountFrozen, escrow.KindInvalidAmountToBuy,
		escrow.KindInvalidWhitelist, escrow.KindInvalidTokenOwner:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeError renders err with the status of its kind. Unclassified errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := escrow.KindOf(err); kind != escrow.KindUnknown {
		writeProblem(w, StatusForKind(kind), kind.String(), err.Error())
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "NotFound", "not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "request cancelled")
	default:
		s.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeProblem(w, http.StatusInternalServerError, "Internal", "internal error")
	}
}
