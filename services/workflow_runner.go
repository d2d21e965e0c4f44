package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdulllahhh/Comfy/models"
)

const maxWorkflowErrorBody = 2048

// HTTPWorkflowRunner calls the workflow service over HTTP. It never retries:
// a retried run could execute paid work twice.
type HTTPWorkflowRunner struct {
	baseURL string
	client  *http.Client
}

// NewHTTPWorkflowRunner builds a runner. A zero timeout leaves the call
// bounded only by the request context.
func NewHTTPWorkflowRunner(baseURL string, timeout time.Duration) *HTTPWorkflowRunner {
	return &HTTPWorkflowRunner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type workflowPayload struct {
	Prompt string  `json:"prompt"`
	Seed   int64   `json:"seed"`
	Steps  int     `json:"steps"`
	Cfg    float64 `json:"cfg"`
}

func (r *HTTPWorkflowRunner) RunWorkflow(ctx context.Context, req models.WorkflowRequest) (json.RawMessage, error) {
	body, err := json.Marshal(workflowPayload{
		Prompt: req.Prompt,
		Seed:   req.Seed,
		Steps:  req.Steps,
		Cfg:    req.Cfg,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("workflow service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxWorkflowErrorBody))
		return nil, fmt.Errorf("workflow service error: status=%d body=%s", resp.StatusCode, string(msg))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow result: %w", err)
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("workflow service returned invalid JSON")
	}
	return json.RawMessage(out), nil
}
