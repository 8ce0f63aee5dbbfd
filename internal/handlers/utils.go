package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey string

const contextUserIDKey contextKey = "user_id"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextUserIDKey).(int)
	if !ok || userID < 1 {
		return 0, errors.New("missing user id")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Healthz responds to liveness probes.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
