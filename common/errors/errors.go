package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error for HTTP mapping and retry decisions.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuth                Kind = "auth"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindTransientStore      Kind = "transient_store"
	KindFatalReconciliation Kind = "fatal_reconciliation"
	KindInternal            Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, err error) *Error {
	return New(http.StatusBadRequest, KindValidation, message, err)
}

func Auth(message string, err error) *Error {
	return New(http.StatusUnauthorized, KindAuth, message, err)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

func NotFound(message string, err error) *Error {
	return New(http.StatusNotFound, KindNotFound, message, err)
}

// Conflict errors are handled outcomes (insufficient credits, duplicate event).
// They surface as 400 to end users.
func Conflict(message string, err error) *Error {
	return New(http.StatusBadRequest, KindConflict, message, err)
}

func TransientStore(err error) *Error {
	return New(http.StatusInternalServerError, KindTransientStore, "Temporary storage failure, please retry", err)
}

// FatalReconciliation never exposes detail to the caller.
func FatalReconciliation(err error) *Error {
	return New(http.StatusInternalServerError, KindFatalReconciliation, "An unexpected error occurred", err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, "An unexpected error occurred", err)
}

// As returns err as *Error when it is one, or wraps it as an internal error.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Respond writes err as a JSON error body. Only Message reaches the client.
func Respond(c *gin.Context, err error) {
	appErr := As(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

