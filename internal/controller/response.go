package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserHeader carries the tenant id set by the upstream authenticator.
const UserHeader = "X-User-ID"

// RequireTenant rejects requests without a tenant id.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			WriteError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{"success": false, "error": msg})
}

// RespondError maps the error taxonomy onto HTTP status codes.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// DecodeJSON reads the request body into dst. Malformed JSON is a ValidationError.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.NewValidation("body", "is required")
		}
		return appErrors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}
