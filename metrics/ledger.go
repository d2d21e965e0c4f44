package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	WebhookApplied          = "applied"
	WebhookDuplicate        = "duplicate"
	WebhookIgnored          = "ignored"
	WebhookStale            = "stale"
	WebhookInvalidSignature = "invalid_signature"
	WebhookMalformed        = "malformed"
	WebhookFailed           = "failed"
	WebhookDroppedGrant     = "dropped_grant"
)

// Gated run outcomes.
const (
	RunSucceeded    = "succeeded"
	RunInsufficient = "insufficient_credits"
	RunRefunded     = "refunded"
	RunRefundFailed = "refund_failed"
)

// LedgerMetrics holds the ledger's prometheus collectors. A nil
// *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	webhookEvents          *prometheus.CounterVec
	creditsGranted         prometheus.Counter
	gatedRuns              *prometheus.CounterVec
	reconciliationFailures prometheus.Counter
	inconsistentBalances   prometheus.Counter
	gatherer               prometheus.Gatherer
}

// NewLedgerMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func NewLedgerMetrics(reg *prometheus.Registry) *LedgerMetrics {
	m := &LedgerMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "webhook_events_total",
			Help:      "Payment provider events by processing outcome.",
		}, []string{"outcome"}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "credits_granted_total",
			Help:      "Credits granted through completed checkouts.",
		}),
		gatedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "gated_runs_total",
			Help:      "Credit-gated workflow runs by outcome.",
		}, []string{"outcome"}),
		reconciliationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "reconciliation_failures_total",
			Help:      "Refunds that could not be written after a failed run.",
		}),
		inconsistentBalances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "inconsistent_balances_total",
			Help:      "Reconciliation checks where balance differed from the transaction sum.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.webhookEvents, m.creditsGranted, m.gatedRuns, m.reconciliationFailures, m.inconsistentBalances)
	return m
}

func (m *LedgerMetrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) CreditsGranted(n int) {
	if m == nil {
		return
	}
	m.creditsGranted.Add(float64(n))
}

func (m *LedgerMetrics) GatedRun(outcome string) {
	if m == nil {
		return
	}
	m.gatedRuns.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) ReconciliationFailure() {
	if m == nil {
		return
	}
	m.reconciliationFailures.Inc()
}

func (m *LedgerMetrics) InconsistentBalance() {
	if m == nil {
		return
	}
	m.inconsistentBalances.Inc()
}

// Handler exposes the registry for scraping.
func (m *LedgerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Counter accessors, mainly for assertions.
func (m *LedgerMetrics) WebhookEventsCounter(outcome string) prometheus.Counter {
	return m.webhookEvents.WithLabelValues(outcome)
}

func (m *LedgerMetrics) GatedRunsCounter(outcome string) prometheus.Counter {
	return m.gatedRuns.WithLabelValues(outcome)
}

func (m *LedgerMetrics) ReconciliationFailuresCounter() prometheus.Counter {
	return m.reconciliationFailures
}

func (m *LedgerMetrics) InconsistentBalancesCounter() prometheus.Counter {
	return m.inconsistentBalances
}
