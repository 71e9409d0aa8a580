package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/result"
)

var (
	// ErrInvalidSegment is returned when a base64url path segment cannot be decoded.
	ErrInvalidSegment = errors.New("invalid base64url path segment")

	// ErrBodyTooLarge is returned when a request body exceeds maxBodyBytes.
	ErrBodyTooLarge = errors.New("request body too large")
)

const (
	MsgClaimDataRequired    = "Claim data is required"
	MsgPropertiesRequired   = "Properties are required"
	MsgInvalidPathParameter = "Invalid path parameter"
	msgInternal             = "internal server error"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeFailure sends a failed Result as 400 with its error list.
func writeFailure(w http.ResponseWriter, res result.Result) {
	writeJSON(w, http.StatusBadRequest, res)
}

func writeErrors(w http.ResponseWriter, status int, errs ...string) {
	writeJSON(w, status, result.Failure(errs...))
}

func (h *Handlers) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeErrors(w, http.StatusInternalServerError, msgInternal)
}
