package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abdulllahhh/Comfy/models"
	awspkg "github.com/abdulllahhh/Comfy/pkg/aws"

	"go.uber.org/zap"
)

// LedgerEventPublisher announces committed ledger mutations.
type LedgerEventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event models.LedgerEvent) error
}

type NoopLedgerPublisher struct{}

func (NoopLedgerPublisher) PublishLedgerEvent(context.Context, models.LedgerEvent) error { return nil }

// SNSLedgerPublisher sends ledger events to one SNS topic.
type SNSLedgerPublisher struct {
	SNS      awspkg.SNSPublisher
	TopicArn string
}

func (p *SNSLedgerPublisher) PublishLedgerEvent(ctx context.Context, event models.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.SNS.Publish(ctx, p.TopicArn, payload, map[string]string{"event_type": event.Type})
}

const publishTimeout = 5 * time.Second

// publishAfterCommit sends event without letting a publishing failure reach
// the caller; the ledger row is already durable.
func publishAfterCommit(ctx context.Context, pub LedgerEventPublisher, log *zap.Logger, event models.LedgerEvent) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := pub.PublishLedgerEvent(ctx, event); err != nil {
		log.Warn("Failed to publish ledger event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.String("reference_id", event.ReferenceID),
			zap.Error(err),
		)
	}
}

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}

var ledgerEventMetric = map[string]string{
	models.LedgerEventPurchased: awspkg.MetricCreditsPurchased,
	models.LedgerEventUsed:      awspkg.MetricCreditsConsumed,
	models.LedgerEventRefunded:  awspkg.MetricCreditsRefunded,
	models.LedgerEventBonus:     awspkg.MetricCreditsBonus,
}

// MeteredLedgerPublisher records a CloudWatch data point per event before
// handing it to Next. Metric failures are not publishing failures.
type MeteredLedgerPublisher struct {
	Next    LedgerEventPublisher
	Metrics MetricsRecorder
	Service string
	Logger  *zap.Logger
}

func (p *MeteredLedgerPublisher) PublishLedgerEvent(ctx context.Context, event models.LedgerEvent) error {
	if name, ok := ledgerEventMetric[event.Type]; ok && p.Metrics != nil {
		amount := event.Amount
		if amount < 0 {
			amount = -amount
		}
		if err := p.Metrics.RecordValue(ctx, name, float64(amount), map[string]string{"Service": p.Service}); err != nil && p.Logger != nil {
			p.Logger.Warn("Failed to record ledger metric",
				zap.String("metric", name),
				zap.String("type", event.Type),
				zap.Error(err),
			)
		}
	}
	return p.Next.PublishLedgerEvent(ctx, event)
}
