package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorType represents different categories of application errors
type ErrorType int

const (
	ValidationError ErrorType = iota
	DatabaseError
	FileSystemError
	CatalogError
	ConfigurationError
	NameCollisionError
	TransferError
	FinalizationError
	NotFoundError
)

// kind describes how errors of one type are named, reported and shown.
// A nil message means the underlying error text is shown as is.
type kind struct {
	name    string
	status  int
	message func(err error) string
}

func fixed(msg string) func(error) string {
	return func(error) string { return msg }
}

var kinds = map[ErrorType]kind{
	ValidationError:    {name: "validation", status: http.StatusBadRequest},
	DatabaseError:      {name: "database", status: http.StatusInternalServerError},
	FileSystemError:    {name: "filesystem", status: http.StatusInternalServerError, message: fixed("File system operation failed")},
	CatalogError:       {name: "catalog", status: http.StatusBadGateway},
	ConfigurationError: {name: "configuration", status: http.StatusUnprocessableEntity},
	NameCollisionError: {name: "name_collision", status: http.StatusConflict, message: fixed("A VM with this name already exists in the selected directory")},
	TransferError:      {name: "transfer", status: http.StatusBadGateway},
	FinalizationError: {
		name:    "finalization",
		status:  http.StatusInternalServerError,
		message: func(err error) string { return fmt.Sprintf("Error creating config: %v", err) },
	},
	NotFoundError: {name: "not_found", status: http.StatusNotFound},
}

// AppError is an error with the category, operation and user-facing text
// needed to report it over HTTP or the CLI.
type AppError struct {
	Type    ErrorType
	Op      string // Operation that failed
	Err     error
	Message string // Shown to the user
	Code    int    // HTTP status
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	switch {
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string for logging
func (et ErrorType) String() string {
	if k, ok := kinds[et]; ok {
		return k.name
	}
	return "unknown"
}

// New builds an AppError of type t for err, failing in op
func New(t ErrorType, op string, err error) *AppError {
	k := kinds[t]
	msg := err.Error()
	if k.message != nil {
		msg = k.message(err)
	}
	return &AppError{Type: t, Op: op, Err: err, Message: msg, Code: k.status}
}

func NewValidationError(op string, err error) *AppError { return New(ValidationError, op, err) }
func NewDatabaseError(op string, err error) *AppError   { return New(DatabaseError, op, err) }
func NewFileSystemError(op string, err error) *AppError { return New(FileSystemError, op, err) }

// NewCatalogError reports a failed catalog fetch with the cause shown verbatim
func NewCatalogError(op string, err error) *AppError { return New(CatalogError, op, err) }

// NewConfigurationError reports a selection that is ambiguous or matches nothing
func NewConfigurationError(op string, err error) *AppError { return New(ConfigurationError, op, err) }

// NewNameCollisionError reports a VM name already taken under path
func NewNameCollisionError(op, path string) *AppError {
	return New(NameCollisionError, op, fmt.Errorf("%s already exists", path)).WithContext("path", path)
}

func NewTransferError(op string, err error) *AppError     { return New(TransferError, op, err) }
func NewFinalizationError(op string, err error) *AppError { return New(FinalizationError, op, err) }
func NewNotFoundError(op string, err error) *AppError     { return New(NotFoundError, op, err) }

// WithContext attaches a key/value pair that LogError will include
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogError logs err at error level under its user-facing message
func LogError(logger *slog.Logger, err *AppError) {
	attrs := make([]interface{}, 0, 4+len(err.Context))
	attrs = append(attrs,
		slog.String("type", err.Type.String()),
		slog.String("operation", err.Op),
		slog.Int("code", err.Code),
	)
	for k, v := range err.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if err.Err != nil {
		attrs = append(attrs, slog.String("error", err.Err.Error()))
	}
	logger.Error(err.Message, attrs...)
}

// HandleHTTPError writes err as a plain text response. Errors that carry no
// AppError are logged and hidden behind a 500.
func HandleHTTPError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *AppError
	if !IsAppError(err, &appErr) {
		logger.Error("Unhandled error", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	LogError(logger, appErr)
	http.Error(w, appErr.Message, appErr.Code)
}

// IsAppError checks if an error is, or wraps, an AppError and extracts it
func IsAppError(err error, target **AppError) bool {
	return stderrors.As(err, target)
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return IsAppError(err, &appErr) && appErr.Type == t
}

// Wrap prefixes op onto the operation chain of err. A plain error becomes an
// opaque 500.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if !IsAppError(err, &appErr) {
		return &AppError{
			Type:    ValidationError,
			Op:      op,
			Err:     err,
			Message: "Operation failed",
			Code:    http.StatusInternalServerError,
		}
	}

	wrapped := *appErr
	wrapped.Op = op + " -> " + appErr.Op
	return &wrapped
}
