package controllers

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/abdulllahhh/Comfy/common/errors"
	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// toAppError classifies a service error. Messages chosen here are the only
// text a client ever sees.
func toAppError(err error) *apperrors.Error {
	var (
		appErr    *apperrors.Error
		locked    *services.LockedError
		failed    *services.FailedLoginError
		recErr    *services.ReconciliationError
		fieldErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &recErr):
		return apperrors.FatalReconciliation(err)
	case errors.As(err, &locked):
		return apperrors.Auth(locked.Error(), err)
	case errors.As(err, &failed):
		return apperrors.Auth(failed.Error(), err)
	case errors.As(err, &fieldErrs):
		return apperrors.Validation(describeFieldError(fieldErrs), err)
	case errors.Is(err, services.ErrInvalidInput):
		return apperrors.Validation(unwrapMessage(err), err)

	case errors.Is(err, services.ErrInvalidSignature):
		return apperrors.Validation("Invalid signature", err)
	case errors.Is(err, services.ErrStaleEvent):
		return apperrors.Validation("Event too old", err)
	case errors.Is(err, services.ErrMalformedEvent):
		return apperrors.Validation("Malformed event", err)
	case errors.Is(err, services.ErrTransientStore):
		return apperrors.TransientStore(err)

	case errors.Is(err, services.ErrInsufficientCredits):
		return apperrors.Conflict("Insufficient credits", err)
	case errors.Is(err, services.ErrWorkExecutionFailed):
		return apperrors.New(http.StatusInternalServerError, apperrors.KindInternal,
			"AI model execution failed. Your credit has been refunded.", err)
	case errors.Is(err, services.ErrUnknownPackage):
		return apperrors.Validation("Invalid credit package", err)

	case errors.Is(err, services.ErrInvalidCredentials):
		return apperrors.Auth("Invalid email or password", err)
	case errors.Is(err, services.ErrInvalidToken):
		return apperrors.Auth("Invalid token", err)
	case errors.Is(err, services.ErrInvalidRefreshToken):
		return apperrors.Validation("Invalid or expired refresh token", err)
	case errors.Is(err, services.ErrEmailTaken):
		return apperrors.Validation("Email is already registered", err)
	case errors.Is(err, services.ErrUsernameTaken):
		return apperrors.Validation("Username is already taken", err)
	case errors.Is(err, services.ErrInvalidRole):
		return apperrors.Validation("Invalid role", err)
	case errors.Is(err, services.ErrRoleAlreadyAssigned):
		return apperrors.Validation("User already has this role", err)
	case errors.Is(err, services.ErrUserNotFound):
		return apperrors.NotFound("User not found", err)
	}
	return apperrors.Internal(err)
}

// respondError logs server-side failures and writes the client-facing body.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr := toAppError(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.FromContext(c, log).Error("Request failed",
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err),
		)
	}
	apperrors.Respond(c, appErr)
}

func badRequest(c *gin.Context, message string) {
	apperrors.Respond(c, apperrors.Validation(message, nil))
}

func describeFieldError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "username":
		return "Username can only contain letters, numbers and underscores"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// unwrapMessage returns the cause text of an fmt.Errorf("%w: %w") wrap.
func unwrapMessage(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
