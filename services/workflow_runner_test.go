package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPWorkflowRunner_PostsRequest(t *testing.T) {
	var got workflowPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/run", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":["a.png"]}`))
	}))
	defer srv.Close()

	runner := NewHTTPWorkflowRunner(srv.URL+"/", 5*time.Second)
	out, err := runner.RunWorkflow(context.Background(), testWorkflow)

	require.NoError(t, err)
	assert.JSONEq(t, `{"images":["a.png"]}`, string(out))
	assert.Equal(t, "a lighthouse at dusk", got.Prompt)
	assert.Equal(t, int64(1234), got.Seed)
	assert.Equal(t, 20, got.Steps)
	assert.Equal(t, 8.0, got.Cfg)
}

func TestHTTPWorkflowRunner_ErrorStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "out of memory", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPWorkflowRunner(srv.URL, time.Second).RunWorkflow(context.Background(), testWorkflow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, 1, calls)
}

func TestHTTPWorkflowRunner_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPWorkflowRunner(srv.URL, time.Second).RunWorkflow(context.Background(), testWorkflow)

	assert.Error(t, err)
}

func TestHTTPWorkflowRunner_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPWorkflowRunner(srv.URL, 0).RunWorkflow(ctx, testWorkflow)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
