package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/logger"
)

const internalErrorMessage = "Internal server error"

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// respondError maps err onto a status code. Validation and conflict
// failures are both reported as 400.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err), domain.IsConflict(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.G(ctx).WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
	}
}
