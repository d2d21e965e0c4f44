package logger

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "rid-1", RequestID(WithRequestID(context.Background(), "rid-1")))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(RequestIDKey, "rid-2")
	assert.Equal(t, "rid-2", RequestID(c))
}

func TestFromContext_AddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	FromContext(WithRequestID(context.Background(), "rid-3"), base).Info("with id")
	FromContext(context.Background(), base).Info("without id")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "rid-3", entries[0].ContextMap()["request_id"])
		assert.NotContains(t, entries[1].ContextMap(), "request_id")
	}
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = prev })

	FromContext(context.Background(), nil).Info("global")

	assert.Equal(t, 1, logs.Len())
}

func TestInitialize(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	prod := Initialize("production")
	assert.Same(t, prod, Log)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))

	dev := Initialize("development")
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
