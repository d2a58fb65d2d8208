package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/model"
)

type errorBody struct {
	Message string `json:"message"`
}

type importAbortedBody struct {
	Message string `json:"message"`
	model.ImportResult
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are logged
// and hidden behind a 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := errorStatus(log, err)
	writeJSON(w, status, errorBody{Message: msg})
}

func errorStatus(log *zap.Logger, err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	default:
		log.Error("request failed", zap.Error(err))
		return http.StatusInternalServerError, "internal error"
	}
}
