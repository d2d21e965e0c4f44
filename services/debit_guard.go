package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/metrics"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	usageCost         = 1
	usageDescription  = "AI model usage"
	refundDescription = "Refund for failed AI model usage"
)

// WorkflowRunner is the external capability a credit pays for.
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, req models.WorkflowRequest) (json.RawMessage, error)
}

// DebitGuard charges one credit per run and refunds it when the run fails.
type DebitGuard struct {
	ledger    repository.LedgerRepository
	runner    WorkflowRunner
	publisher LedgerEventPublisher
	metrics   *metrics.LedgerMetrics
	logger    *zap.Logger
	newID     func() string
}

func NewDebitGuard(ledger repository.LedgerRepository, runner WorkflowRunner, publisher LedgerEventPublisher, m *metrics.LedgerMetrics, log *zap.Logger) *DebitGuard {
	if publisher == nil {
		publisher = NoopLedgerPublisher{}
	}
	return &DebitGuard{
		ledger:    ledger,
		runner:    runner,
		publisher: publisher,
		metrics:   m,
		logger:    log,
		newID:     uuid.NewString,
	}
}

// RunGatedWork debits one credit, runs the workflow and refunds the credit if
// the workflow fails. The debit commits before the runner is called so no
// row lock is held for the duration of the run.
func (g *DebitGuard) RunGatedWork(ctx context.Context, userID string, req models.WorkflowRequest) (json.RawMessage, error) {
	correlationID := g.newID()
	log := logger.FromContext(ctx, g.logger).With(
		zap.String("user_id", userID),
		zap.String("correlation_id", correlationID),
	)

	if err := g.debit(ctx, userID, correlationID); err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCredits):
			g.metrics.GatedRun(metrics.RunInsufficient)
			log.Info("Gated run rejected: insufficient credits")
			return nil, err
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		default:
			log.Error("Failed to debit credit", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrTransientStore, err)
		}
	}
	g.publish(ctx, log, models.LedgerEventUsed, userID, -usageCost, correlationID)

	result, workErr := g.runner.RunWorkflow(ctx, req)
	if workErr == nil {
		g.metrics.GatedRun(metrics.RunSucceeded)
		return result, nil
	}

	log.Warn("Workflow failed, refunding credit", zap.Error(workErr))
	if err := g.refund(ctx, userID, correlationID); err != nil {
		g.metrics.GatedRun(metrics.RunRefundFailed)
		g.metrics.ReconciliationFailure()
		log.Error("Fatal reconciliation gap: refund after failed workflow was not recorded",
			zap.NamedError("work_error", workErr),
			zap.NamedError("refund_error", err),
		)
		return nil, &ReconciliationError{
			CorrelationID: correlationID,
			UserID:        userID,
			WorkErr:       workErr,
			RefundErr:     err,
		}
	}
	g.metrics.GatedRun(metrics.RunRefunded)
	g.publish(ctx, log, models.LedgerEventRefunded, userID, usageCost, correlationID)

	return nil, fmt.Errorf("%w: %w", ErrWorkExecutionFailed, workErr)
}

func (g *DebitGuard) debit(ctx context.Context, userID, correlationID string) error {
	return g.ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		user, err := tx.LockUser(userID)
		if err != nil {
			return err
		}
		if user.Credits < usageCost {
			return ErrInsufficientCredits
		}
		if err := tx.AdjustCredits(userID, -usageCost); err != nil {
			return err
		}
		return tx.InsertTransaction(&models.CreditTransaction{
			UserID:          userID,
			Amount:          -usageCost,
			TransactionType: models.TransactionUsage,
			Description:     usageDescription,
			ReferenceID:     correlationID,
			Timestamp:       time.Now().UTC(),
		})
	})
}

// refund runs under a context detached from the request: a client that gives
// up on a failed run must not also cancel its compensation.
func (g *DebitGuard) refund(ctx context.Context, userID, correlationID string) error {
	ctx = context.WithoutCancel(ctx)
	return g.ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.AdjustCredits(userID, usageCost); err != nil {
			return err
		}
		return tx.InsertTransaction(&models.CreditTransaction{
			UserID:          userID,
			Amount:          usageCost,
			TransactionType: models.TransactionRefund,
			Description:     refundDescription,
			ReferenceID:     correlationID,
			Timestamp:       time.Now().UTC(),
		})
	})
}

func (g *DebitGuard) publish(ctx context.Context, log *zap.Logger, eventType, userID string, amount int, ref string) {
	publishAfterCommit(ctx, g.publisher, log, models.LedgerEvent{
		Type:        eventType,
		UserID:      userID,
		Amount:      amount,
		ReferenceID: ref,
		Timestamp:   time.Now().UTC(),
	})
}
