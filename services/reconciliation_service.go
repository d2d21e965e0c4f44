package services

import (
	"context"

	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/metrics"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/repository"

	"go.uber.org/zap"
)

// ReconciliationService compares a cached balance with its ledger history.
type ReconciliationService struct {
	ledger  repository.LedgerRepository
	metrics *metrics.LedgerMetrics
	logger  *zap.Logger
}

func NewReconciliationService(ledger repository.LedgerRepository, m *metrics.LedgerMetrics, log *zap.Logger) *ReconciliationService {
	return &ReconciliationService{ledger: ledger, metrics: m, logger: log}
}

func (s *ReconciliationService) Reconcile(ctx context.Context, userID string) (*models.ReconciliationReport, error) {
	balance, sum, err := s.ledger.BalanceSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &models.ReconciliationReport{
		UserID:         userID,
		Balance:        balance,
		TransactionSum: sum,
		Consistent:     balance == sum,
	}
	if !report.Consistent {
		s.metrics.InconsistentBalance()
		logger.FromContext(ctx, s.logger).Error("Balance does not match ledger history",
			zap.String("user_id", userID),
			zap.Int("balance", balance),
			zap.Int("transaction_sum", sum),
		)
	}
	return report, nil
}
