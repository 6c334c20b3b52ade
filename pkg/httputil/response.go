package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/logger"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// Response is the JSON envelope returned by every endpoint. Failures set
// Success to false and fill Code, plus Errors for field-level validation.
type Response struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Data      any               `json:"data,omitempty"`
	Code      string            `json:"code,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// WriteError maps err to a failure envelope. AppErrors keep their own code and
// message; bare sentinels get a generic one. Anything that ends up as a 500 is
// logged with the request-scoped logger and never echoed to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	var decErr *validator.DecodeError
	switch {
	case errors.As(err, &valErr):
		WriteJSON(w, http.StatusBadRequest, Response{
			Message:   "request validation failed",
			Code:      "VALIDATION_ERROR",
			Errors:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	case errors.As(err, &decErr):
		WriteJSON(w, http.StatusBadRequest, Response{
			Message:   decErr.Error(),
			Code:      "INVALID_INPUT",
			RequestID: requestID,
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteJSON(w, appErr.Status, Response{
			Message:   appErr.Message,
			Code:      appErr.Code,
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch status {
	case http.StatusNotFound:
		code, message = "NOT_FOUND", "resource not found"
	case http.StatusConflict:
		code, message = "CONFLICT", "resource was modified concurrently"
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			code, message = "ALREADY_EXISTS", "resource already exists"
		}
	case http.StatusBadRequest:
		code, message = "INVALID_INPUT", err.Error()
	case http.StatusUnauthorized:
		code, message = "UNAUTHORIZED", "authentication required"
	case http.StatusForbidden:
		code, message = "FORBIDDEN", "insufficient permissions"
	default:
		logInternal(l, r, err)
	}

	WriteJSON(w, status, Response{Message: message, Code: code, RequestID: requestID})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a 400 envelope for a failed decode or validation.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, err, nil)
}

// Page is the data payload of a paginated listing.
type Page[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"totalCount"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
}

// NewPage builds a Page and derives TotalPages and HasNext.
func NewPage[T any](items []T, totalCount, page, limit int) Page[T] {
	if limit <= 0 {
		limit = 1
	}
	totalPages := totalCount / limit
	if totalCount%limit > 0 {
		totalPages++
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// ParseUUID validates a path parameter. On failure it writes a 400 and
// returns false so the caller can return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Code:    "INVALID_PARAMETER",
			Message: "invalid id: " + param,
		})
		return uuid.Nil, false
	}
	return id, true
}
