package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"vmget/internal/errors"
)

// ErrorType is the category reported in the "type" field of an error body.
// Domain errors report their own category name, such as "name_collision".
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// User messages for errors that carry none of their own
var (
	ErrInvalidInput     = "Please check your input and try again"
	ErrResourceNotFound = "The requested resource was not found"
	ErrInternalServer   = "An internal server error occurred"
)

// APIError is the error half of every failed API response
type APIError struct {
	Type        ErrorType   `json:"type"`
	Message     string      `json:"message"`
	UserMessage string      `json:"user_message"`
	Details     interface{} `json:"details,omitempty"`
	StatusCode  int         `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// WithDetails attaches extra data, such as per-field validation messages
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

func NewValidationError(message, userMessage string) *APIError {
	return &APIError{Type: ErrorTypeValidation, Message: message, UserMessage: userMessage, StatusCode: http.StatusBadRequest}
}

func NewNotFoundError(message, userMessage string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message, UserMessage: userMessage, StatusCode: http.StatusNotFound}
}

// WrapError maps err onto an APIError. Domain errors keep their category,
// status and user message; anything else becomes an opaque 500.
func WrapError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}

	var appErr *errors.AppError
	if !errors.IsAppError(err, &appErr) {
		return &APIError{
			Type:        ErrorTypeInternal,
			Message:     err.Error(),
			UserMessage: ErrInternalServer,
			StatusCode:  http.StatusInternalServerError,
		}
	}

	out := &APIError{
		Type:        ErrorType(appErr.Type.String()),
		Message:     appErr.Error(),
		UserMessage: appErr.Message,
		StatusCode:  appErr.Code,
	}
	if len(appErr.Context) > 0 {
		out.Details = appErr.Context
	}
	return out
}

// ErrorResponse is the body written by SendError
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

// SendError logs err and writes it as JSON. Client errors log at warn.
func SendError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err *APIError) {
	level := slog.LevelWarn
	if err.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "Request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("type", string(err.Type)),
		slog.String("error", err.Message),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: *err}); encErr != nil {
		logger.Error("Failed to encode error response", slog.String("error", encErr.Error()))
	}
}

// ValidationErrors collects messages per request field
type ValidationErrors map[string][]string

func (ve ValidationErrors) Add(field, message string) {
	ve[field] = append(ve[field], message)
}

func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// ToAPIError returns nil when nothing was collected
func (ve ValidationErrors) ToAPIError() *APIError {
	if !ve.HasErrors() {
		return nil
	}
	return NewValidationError("Validation failed", ErrInvalidInput).WithDetails(ve)
}
