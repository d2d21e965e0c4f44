package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdulllahhh/Comfy/repository"
)

// Payment event errors.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleEvent       = errors.New("webhook event is too old")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrTransientStore   = errors.New("transient store failure")
)

// Credit usage errors.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrWorkExecutionFailed = errors.New("workflow execution failed")
)

var ErrUnknownPackage = errors.New("unknown credit package")

// Account errors.
var (
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidRole         = errors.New("invalid role")
	ErrRoleAlreadyAssigned = errors.New("user already has this role")
	ErrInvalidToken        = errors.New("invalid or expired token")
)

// LockedError reports a locked account and when the lock ends.
type LockedError struct {
	Until time.Time
	// JustLocked is set when this attempt triggered the lock.
	JustLocked bool
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return "Account has been locked due to multiple failed login attempts."
	}
	return fmt.Sprintf("Account is locked. Try again in %d minutes.", minutesUntil(e.Until))
}

// FailedLoginError is a wrong password on an account that is not yet locked.
type FailedLoginError struct {
	AttemptsRemaining int
}

func (e *FailedLoginError) Error() string {
	return fmt.Sprintf("Invalid email or password. %d attempts remaining.", e.AttemptsRemaining)
}

func (e *FailedLoginError) Unwrap() error { return ErrInvalidCredentials }

// ReconciliationError is returned when a failed run could not be refunded.
// The debit stands and needs manual correction.
type ReconciliationError struct {
	CorrelationID string
	UserID        string
	WorkErr       error
	RefundErr     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("refund for %s failed: %v (work error: %v)", e.CorrelationID, e.RefundErr, e.WorkErr)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrWorkExecutionFailed, e.WorkErr, e.RefundErr}
}

var timeNow = time.Now

func minutesUntil(t time.Time) int {
	d := t.Sub(timeNow())
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}
