package kafka

import (
	"context"
	"encoding/json"

	"github.com/abdulllahhh/Comfy/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LedgerEventProducer publishes committed ledger mutations, keyed by user id
// so one user's events stay ordered within a partition.
type LedgerEventProducer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewLedgerEventProducer(brokers []string, topic string, logger *zap.Logger) *LedgerEventProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka ledger producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &LedgerEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *LedgerEventProducer) PublishLedgerEvent(ctx context.Context, event models.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:     []byte(event.UserID),
		Value:   data,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("Ledger event sent",
		zap.String("topic", p.topic),
		zap.String("type", event.Type),
		zap.String("reference_id", event.ReferenceID),
	)
	return nil
}

func (p *LedgerEventProducer) Close() error {
	return p.writer.Close()
}
