package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for logging and response mapping.
type ErrorKind string

const (
	KindUpload      ErrorKind = "upload"
	KindSubmit      ErrorKind = "submit"
	KindSearch      ErrorKind = "search"
	KindPersistence ErrorKind = "persistence"
	KindTemplate    ErrorKind = "template"
	KindValidation  ErrorKind = "validation"
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindInternal    ErrorKind = "internal"
)

// AppError represents a custom application error with context.
// MessageID names the localized user-facing message for the failure.
type AppError struct {
	Kind      ErrorKind
	Code      int // HTTP status code
	MessageID string
	Err       error
	Context   map[string]interface{}
}

// NewAppError creates a new AppError
func NewAppError(kind ErrorKind, code int, messageID string, err error) *AppError {
	return &AppError{
		Kind:      kind,
		Code:      code,
		MessageID: messageID,
		Err:       err,
		Context:   make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap exposes the underlying error to errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// Taxonomy constructors

// UploadError: asset upload failed; the operation is aborted and no
// partial state is committed.
func UploadError(err error) *AppError {
	return NewAppError(KindUpload, 502, "error_upload", err)
}

// SubmitError: post/send failed; drafted fields stay intact for retry.
func SubmitError(err error) *AppError {
	return NewAppError(KindSubmit, 502, "error_submit", err)
}

// SearchError: recipient lookup failed; logged, the field shows no results.
func SearchError(err error) *AppError {
	return NewAppError(KindSearch, 502, "error_search", err)
}

// PersistenceError: a stored draft could not be read or written.
func PersistenceError(err error) *AppError {
	return NewAppError(KindPersistence, 500, "error_draft", err)
}

// TemplateError: template render failed; the existing body is untouched.
func TemplateError(err error) *AppError {
	return NewAppError(KindTemplate, 502, "error_template", err)
}

// ValidationError: the request cannot be accepted as given.
func ValidationError(messageID string, err error) *AppError {
	return NewAppError(KindValidation, 400, messageID, err)
}

// UnauthorizedError: missing or invalid identity.
func UnauthorizedError(err error) *AppError {
	return NewAppError(KindAuth, 401, "error_auth", err)
}

// RateLimitError: the client exceeded its request budget.
func RateLimitError(err error) *AppError {
	return NewAppError(KindRateLimit, 429, "error_rate_limit", err)
}

// remoteMessager is implemented by failures that carry a human-readable
// message from a backend payload.
type remoteMessager interface {
	RemoteMessage() string
}

// SafeMessage extracts a best-effort human-readable message from a failure
// payload. It never panics; when nothing useful can be extracted it returns
// the empty string and the caller falls back to a generic localized message.
func SafeMessage(err error) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	if err == nil {
		return ""
	}
	var rm remoteMessager
	if errors.As(err, &rm) {
		return rm.RemoteMessage()
	}
	return ""
}
