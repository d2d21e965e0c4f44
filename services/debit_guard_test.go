package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abdulllahhh/Comfy/metrics"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testWorkflow = models.WorkflowRequest{Prompt: "a lighthouse at dusk", Seed: 1234, Steps: 20, Cfg: 8}

func newGuard(t *testing.T, credits int, runner WorkflowRunner) (*DebitGuard, *models.User, *recordingPublisher) {
	t.Helper()
	db := newTestDB(t)
	u := seedUser(t, db, credits)
	pub := &recordingPublisher{}
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), runner, pub, nil, zap.NewNop())
	return g, u, pub
}

func TestRunGatedWork_SuccessChargesOneCredit(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 3)
	pub := &recordingPublisher{}
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), okRunner(), pub, m, zap.NewNop())

	out, err := g.RunGatedWork(context.Background(), u.ID, testWorkflow)

	require.NoError(t, err)
	assert.JSONEq(t, `{"images":["out.png"]}`, string(out))
	assert.Equal(t, 2, balanceOf(t, db, u.ID))

	txs := transactionsOf(t, db, u.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionUsage, txs[0].TransactionType)
	assert.Equal(t, -1, txs[0].Amount)
	assert.Equal(t, "AI model usage", txs[0].Description)
	assert.NotEmpty(t, txs[0].ReferenceID)

	assert.Equal(t, []string{models.LedgerEventUsed}, pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatedRunsCounter(metrics.RunSucceeded)))
}

func TestRunGatedWork_ZeroBalanceNeverCallsRunner(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 0)
	var calls int32
	runner := runnerFunc(func(context.Context, models.WorkflowRequest) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return json.RawMessage(`{}`), nil
	})
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), runner, nil, nil, zap.NewNop())

	_, err := g.RunGatedWork(context.Background(), u.ID, testWorkflow)

	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, 0, balanceOf(t, db, u.ID))
	assert.Empty(t, transactionsOf(t, db, u.ID))
}

func TestRunGatedWork_UnknownUser(t *testing.T) {
	g, _, _ := newGuard(t, 1, okRunner())

	_, err := g.RunGatedWork(context.Background(), "nobody", testWorkflow)

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRunGatedWork_FailedRunIsRefunded(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 1)
	pub := &recordingPublisher{}
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), failingRunner(), pub, m, zap.NewNop())

	_, err := g.RunGatedWork(context.Background(), u.ID, testWorkflow)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkExecutionFailed)
	var recErr *ReconciliationError
	assert.False(t, errors.As(err, &recErr))

	assert.Equal(t, 1, balanceOf(t, db, u.ID))
	txs := transactionsOf(t, db, u.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TransactionUsage, txs[0].TransactionType)
	assert.Equal(t, models.TransactionRefund, txs[1].TransactionType)
	assert.Equal(t, 1, txs[1].Amount)
	assert.Equal(t, "Refund for failed AI model usage", txs[1].Description)
	assert.Equal(t, txs[0].ReferenceID, txs[1].ReferenceID)

	assert.Equal(t, []string{models.LedgerEventUsed, models.LedgerEventRefunded}, pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatedRunsCounter(metrics.RunRefunded)))
}

func TestRunGatedWork_RefundSurvivesCancelledRequest(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 1)
	ctx, cancel := context.WithCancel(context.Background())
	runner := runnerFunc(func(context.Context, models.WorkflowRequest) (json.RawMessage, error) {
		cancel()
		return nil, context.Canceled
	})
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), runner, nil, nil, zap.NewNop())

	_, err := g.RunGatedWork(ctx, u.ID, testWorkflow)

	assert.ErrorIs(t, err, ErrWorkExecutionFailed)
	assert.Equal(t, 1, balanceOf(t, db, u.ID))
}

// The sqlite dialect drops FOR UPDATE, so here the single connection of
// OpenInMemory serializes the transactions. The row-lock SQL itself is
// checked against postgres in the repository package.
func TestRunGatedWork_NoDoubleSpend(t *testing.T) {
	cases := []struct {
		name     string
		credits  int
		attempts int
	}{
		{"last credit", 1, 10},
		{"several credits", 5, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t)
			u := seedUser(t, db, tc.credits)
			g := NewDebitGuard(repository.NewGormLedgerRepo(db), okRunner(), nil, nil, zap.NewNop())

			var (
				wg           sync.WaitGroup
				succeeded    int32
				insufficient int32
			)
			for i := 0; i < tc.attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := g.RunGatedWork(context.Background(), u.ID, testWorkflow)
					switch {
					case err == nil:
						atomic.AddInt32(&succeeded, 1)
					case errors.Is(err, ErrInsufficientCredits):
						atomic.AddInt32(&insufficient, 1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(tc.credits), succeeded)
			assert.Equal(t, int32(tc.attempts-tc.credits), insufficient)
			assert.Equal(t, 0, balanceOf(t, db, u.ID))
			assert.Len(t, transactionsOf(t, db, u.ID), tc.credits)
		})
	}
}

// refundFailingLedger lets the debit through and fails every later transaction.
type refundFailingLedger struct {
	repository.LedgerRepository
	calls int32
}

func (l *refundFailingLedger) WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if atomic.AddInt32(&l.calls, 1) > 1 {
		return errors.New("connection reset by peer")
	}
	return l.LedgerRepository.WithTx(ctx, fn)
}

func TestRunGatedWork_RefundFailureIsReconciliationError(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 1)
	pub := &recordingPublisher{}
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())
	ledger := &refundFailingLedger{LedgerRepository: repository.NewGormLedgerRepo(db)}
	g := NewDebitGuard(ledger, failingRunner(), pub, m, zap.NewNop())
	g.newID = func() string { return "corr-1" }

	_, err := g.RunGatedWork(context.Background(), u.ID, testWorkflow)

	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "corr-1", recErr.CorrelationID)
	assert.Equal(t, u.ID, recErr.UserID)
	assert.ErrorIs(t, err, ErrWorkExecutionFailed)

	// the debit stands
	assert.Equal(t, 0, balanceOf(t, db, u.ID))
	assert.Equal(t, []string{models.LedgerEventUsed}, pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconciliationFailuresCounter()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatedRunsCounter(metrics.RunRefundFailed)))
}

func TestRunGatedWork_SequentialScenario(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, 2)
	var n int32
	// second run fails
	runner := runnerFunc(func(context.Context, models.WorkflowRequest) (json.RawMessage, error) {
		if atomic.AddInt32(&n, 1) == 2 {
			return nil, errors.New("timeout")
		}
		return json.RawMessage(`{"ok":true}`), nil
	})
	g := NewDebitGuard(repository.NewGormLedgerRepo(db), runner, nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := g.RunGatedWork(ctx, u.ID, testWorkflow)
	require.NoError(t, err)
	_, err = g.RunGatedWork(ctx, u.ID, testWorkflow)
	require.ErrorIs(t, err, ErrWorkExecutionFailed)
	_, err = g.RunGatedWork(ctx, u.ID, testWorkflow)
	require.NoError(t, err)
	_, err = g.RunGatedWork(ctx, u.ID, testWorkflow)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	assert.Equal(t, 0, balanceOf(t, db, u.ID))

	sum := 2
	for _, tx := range transactionsOf(t, db, u.ID) {
		sum += tx.Amount
	}
	assert.Equal(t, 0, sum)
}
