package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool               `json:"success"`
	Data    any                `json:"data,omitempty"`
	Message string             `json:"message,omitempty"`
	Error   *ragerrors.Payload `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Warn("api_write_failed", slog.String("error", err.Error()))
	}
}

func writeOK(w http.ResponseWriter, data any, msg string) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, err error) {
	p := ragerrors.ToPayload(err)
	writeJSON(w, statusFor(p), Response{Success: false, Message: p.Message, Error: p})
}

// statusFor maps an error payload to an HTTP status.
func statusFor(p *ragerrors.Payload) int {
	switch p.Code {
	case ragerrors.ErrCodeIndexNotBuilt, ragerrors.ErrCodeIndexLocked:
		return http.StatusConflict
	case ragerrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ragerrors.ErrCodeNetworkTimeout:
		return http.StatusGatewayTimeout
	}
	switch ragerrors.Category(p.Category) {
	case ragerrors.CategoryValidation:
		return http.StatusBadRequest
	case ragerrors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
