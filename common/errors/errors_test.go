package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("db down")

	tests := []struct {
		name string
		err  *Error
		code int
		kind Kind
	}{
		{"validation", Validation("bad", nil), http.StatusBadRequest, KindValidation},
		{"auth", Auth("nope", nil), http.StatusUnauthorized, KindAuth},
		{"forbidden", Forbidden("no"), http.StatusForbidden, KindForbidden},
		{"not found", NotFound("gone", nil), http.StatusNotFound, KindNotFound},
		{"conflict", Conflict("Insufficient credits", nil), http.StatusBadRequest, KindConflict},
		{"transient", TransientStore(cause), http.StatusInternalServerError, KindTransientStore},
		{"fatal", FatalReconciliation(cause), http.StatusInternalServerError, KindFatalReconciliation},
		{"internal", Internal(cause), http.StatusInternalServerError, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.kind, tt.err.Kind)
		})
	}
}

func TestError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransientStore(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Temporary storage failure, please retry: connection reset", err.Error())
	assert.Equal(t, "gone", NotFound("gone", nil).Error())
}

func TestAs(t *testing.T) {
	appErr := Forbidden("no")
	wrapped := fmt.Errorf("handler: %w", appErr)

	assert.Same(t, appErr, As(wrapped))

	plain := As(errors.New("boom"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "An unexpected error occurred", plain.Message)
}

func TestRespond_HidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Respond(c, FatalReconciliation(errors.New("refund of 1 credit failed for user u-1")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred"}`, w.Body.String())
	assert.True(t, c.IsAborted())
}
