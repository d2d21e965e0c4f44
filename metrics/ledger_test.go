package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMetrics_CountsAndExposes(t *testing.T) {
	m := NewLedgerMetrics(prometheus.NewRegistry())

	m.WebhookEvent(WebhookApplied)
	m.WebhookEvent(WebhookApplied)
	m.WebhookEvent(WebhookDuplicate)
	m.CreditsGranted(100)
	m.GatedRun(RunRefunded)
	m.ReconciliationFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEventsCounter(WebhookApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEventsCounter(WebhookDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatedRunsCounter(RunRefunded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconciliationFailuresCounter()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_credits_granted_total 100")
}

func TestLedgerMetrics_NilIsNoop(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.WebhookEvent(WebhookFailed)
		m.CreditsGranted(1)
		m.GatedRun(RunSucceeded)
		m.ReconciliationFailure()
		m.InconsistentBalance()
	})
}
