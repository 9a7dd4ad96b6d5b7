package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or WriteError, so all responses
// share one content type and every error has the same body:
//
//	{"error": "duplicate_email", "message": "an account with email a@b.c already exists"}
//
// "error" is the machine-readable code the frontend switches on; "message"
// is safe to show to the user.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/devpulse/internal/apperror"
)

// maxBodyBytes caps JSON request bodies. Register and login bodies are tiny.
const maxBodyBytes = 64 << 10

const codeInternal = "internal_error"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader, so the order here matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteError maps an error to its HTTP status and writes the error body.
//
// ERROR MAPPING:
// The service layer never sees status codes. It returns *apperror.AppError
// values wrapping a sentinel, and the sentinel alone decides the status:
//
//	ErrValidation, ErrInvalidState,
//	ErrExpiredState, ErrUpstream  → 400
//	ErrUnauthorized               → 401
//	ErrForbidden                  → 403
//	ErrNotFound                   → 404
//	ErrConflict                   → 409
//
// Anything else is a 500 with a generic body. The real error is logged and
// never sent: it may contain driver messages or upstream responses.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   codeInternal,
			Message: "An internal error occurred",
		})
		return
	}

	status := statusFor(appErr)
	if status == http.StatusInternalServerError {
		logger.Error("unmapped application error",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, ErrorResponse{Error: codeInternal, Message: "An internal error occurred"})
		return
	}

	if errors.Is(err, apperror.ErrUpstream) {
		// Keep the upstream cause in the logs; the client only gets Message.
		logger.Warn("upstream failure",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
	})
}

func statusFor(appErr *apperror.AppError) int {
	switch {
	case errors.Is(appErr, apperror.ErrValidation),
		errors.Is(appErr, apperror.ErrInvalidState),
		errors.Is(appErr, apperror.ErrExpiredState),
		errors.Is(appErr, apperror.ErrUpstream):
		return http.StatusBadRequest
	case errors.Is(appErr, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(appErr, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(appErr, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(appErr, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst. Malformed JSON is a
// validation error rather than a 500.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		default:
			return apperror.ValidationFailed("body", "request body must be valid JSON")
		}
	}
	return nil
}
