package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/metrics"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/repository"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// Checkout metadata keys. They round-trip from session creation to the webhook.
const (
	MetadataUserID  = "UserId"
	MetadataCredits = "Credits"
)

const DefaultMaxEventAge = 5 * time.Minute

// EventProcessor applies Stripe payment events to the ledger exactly once.
type EventProcessor struct {
	ledger        repository.LedgerRepository
	signingSecret string
	maxAge        time.Duration
	publisher     LedgerEventPublisher
	metrics       *metrics.LedgerMetrics
	logger        *zap.Logger
	now           func() time.Time
}

func NewEventProcessor(ledger repository.LedgerRepository, signingSecret string, maxAge time.Duration, publisher LedgerEventPublisher, m *metrics.LedgerMetrics, log *zap.Logger) *EventProcessor {
	if maxAge <= 0 {
		maxAge = DefaultMaxEventAge
	}
	if publisher == nil {
		publisher = NoopLedgerPublisher{}
	}
	return &EventProcessor{
		ledger:        ledger,
		signingSecret: signingSecret,
		maxAge:        maxAge,
		publisher:     publisher,
		metrics:       m,
		logger:        log,
		now:           time.Now,
	}
}

type creditGrant struct {
	userID    string
	credits   int
	sessionID string
	intentID  string
	amount    int64
	currency  string
}

// ApplyPaymentEvent verifies and applies one webhook delivery. A nil return
// covers success, duplicates and ignored event types; the caller should
// acknowledge all of them.
func (p *EventProcessor) ApplyPaymentEvent(ctx context.Context, rawBody []byte, signatureHeader string) error {
	log := logger.FromContext(ctx, p.logger)

	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, p.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.metrics.WebhookEvent(metrics.WebhookInvalidSignature)
		log.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	age := p.now().Sub(time.Unix(event.Created, 0))
	if age > p.maxAge {
		p.metrics.WebhookEvent(metrics.WebhookStale)
		log.Warn("Rejecting stale webhook event", zap.Duration("age", age))
		return ErrStaleEvent
	}

	exists, err := p.ledger.ProcessedEventExists(ctx, event.ID)
	if err != nil {
		p.metrics.WebhookEvent(metrics.WebhookFailed)
		log.Error("Failed to check processed events", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrTransientStore, err)
	}
	if exists {
		p.metrics.WebhookEvent(metrics.WebhookDuplicate)
		log.Info("Skipping already processed webhook event")
		return nil
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		p.metrics.WebhookEvent(metrics.WebhookIgnored)
		log.Info("Unhandled webhook event type")
		return nil
	}

	grant, err := parseCreditGrant(event)
	if err != nil {
		p.metrics.WebhookEvent(metrics.WebhookMalformed)
		log.Warn("Malformed checkout session event", zap.Error(err))
		return err
	}
	log = log.With(zap.String("user_id", grant.userID), zap.String("session_id", grant.sessionID))

	dropped, err := p.applyGrant(ctx, event, grant, rawBody)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		// Another delivery of the same event or session won the race.
		p.metrics.WebhookEvent(metrics.WebhookDuplicate)
		log.Info("Concurrent duplicate webhook event rolled back", zap.Error(err))
		return nil
	case err != nil:
		p.metrics.WebhookEvent(metrics.WebhookFailed)
		log.Error("Failed to apply credit grant", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrTransientStore, err)
	case dropped:
		p.metrics.WebhookEvent(metrics.WebhookDroppedGrant)
		log.Error("Credit grant dropped: user does not exist, event marked processed",
			zap.Int("credits", grant.credits))
		return nil
	}

	p.metrics.WebhookEvent(metrics.WebhookApplied)
	p.metrics.CreditsGranted(grant.credits)
	log.Info("Credits granted", zap.Int("credits", grant.credits))

	publishAfterCommit(ctx, p.publisher, log, models.LedgerEvent{
		Type:        models.LedgerEventPurchased,
		UserID:      grant.userID,
		Amount:      grant.credits,
		ReferenceID: grant.sessionID,
		Timestamp:   p.now().UTC(),
	})
	return nil
}

// applyGrant performs every write for one completed checkout in a single
// transaction. The processed-event insert goes first so a racing duplicate
// fails on the unique key before touching the balance.
func (p *EventProcessor) applyGrant(ctx context.Context, event stripe.Event, g *creditGrant, rawBody []byte) (dropped bool, err error) {
	err = p.ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		now := p.now().UTC()

		if err := tx.InsertProcessedEvent(&models.ProcessedEvent{
			StripeEventID: event.ID,
			EventType:     string(event.Type),
			UserID:        g.userID,
			ProcessedAt:   now,
			EventData:     string(rawBody),
		}); err != nil {
			return err
		}

		if _, err := tx.LockUser(g.userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				dropped = true
				return nil
			}
			return err
		}

		if err := tx.AdjustCredits(g.userID, g.credits); err != nil {
			return err
		}

		if err := tx.InsertPayment(&models.Payment{
			UserID:                g.userID,
			Amount:                float64(g.amount) / 100,
			AmountMinor:           g.amount,
			Currency:              g.currency,
			CreditsAdded:          g.credits,
			Status:                models.PaymentCompleted,
			StripeSessionID:       g.sessionID,
			StripePaymentIntentID: g.intentID,
			CreatedAt:             now,
			CompletedAt:           &now,
		}); err != nil {
			return err
		}

		return tx.InsertTransaction(&models.CreditTransaction{
			UserID:          g.userID,
			Amount:          g.credits,
			TransactionType: models.TransactionPurchase,
			Description:     fmt.Sprintf("Purchased %d credits", g.credits),
			ReferenceID:     g.sessionID,
			Timestamp:       now,
		})
	})
	if err != nil {
		return false, err
	}
	return dropped, nil
}

func parseCreditGrant(event stripe.Event) (*creditGrant, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing event data", ErrMalformedEvent)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrMalformedEvent)
	}

	userID := strings.TrimSpace(sess.Metadata[MetadataUserID])
	if userID == "" {
		return nil, fmt.Errorf("%w: missing %s metadata", ErrMalformedEvent, MetadataUserID)
	}
	credits, err := strconv.Atoi(strings.TrimSpace(sess.Metadata[MetadataCredits]))
	if err != nil || credits <= 0 {
		return nil, fmt.Errorf("%w: invalid %s metadata %q", ErrMalformedEvent, MetadataCredits, sess.Metadata[MetadataCredits])
	}

	currency := strings.ToUpper(string(sess.Currency))
	if currency == "" {
		currency = "USD"
	}

	g := &creditGrant{
		userID:    userID,
		credits:   credits,
		sessionID: sess.ID,
		amount:    sess.AmountTotal,
		currency:  currency,
	}
	if sess.PaymentIntent != nil {
		g.intentID = sess.PaymentIntent.ID
	}
	return g, nil
}
