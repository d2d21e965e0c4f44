package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/abdulllahhh/Comfy/common/logger"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// CreditPackage is one purchasable bundle of credits.
type CreditPackage struct {
	Credits     int    `json:"credits"`
	PriceCents  int64  `json:"priceCents"`
	ProductName string `json:"name"`
}

var creditCatalog = map[int]CreditPackage{
	50:  {Credits: 50, PriceCents: 500, ProductName: "50 AI Credits - $5.00"},
	100: {Credits: 100, PriceCents: 1000, ProductName: "100 AI Credits - $10.00"},
	500: {Credits: 500, PriceCents: 4500, ProductName: "500 AI Credits - $45.00"},
}

const checkoutCurrency = "usd"

// SessionDescriptor is what the client needs to redirect to hosted checkout.
type SessionDescriptor struct {
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl"`
}

// CheckoutSessionCreator is the part of the Stripe client used here.
type CheckoutSessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type CheckoutService struct {
	sessions    CheckoutSessionCreator
	frontendURL string
	logger      *zap.Logger
}

func NewCheckoutService(sessions CheckoutSessionCreator, frontendURL string, log *zap.Logger) *CheckoutService {
	return &CheckoutService{sessions: sessions, frontendURL: frontendURL, logger: log}
}

// ListPackages returns the catalog ordered by credit amount.
func (s *CheckoutService) ListPackages() []CreditPackage {
	out := make([]CreditPackage, 0, len(creditCatalog))
	for _, p := range creditCatalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out
}

// CreateCheckoutSession opens a hosted payment session for a catalog package.
// Nothing is written locally; the metadata set here is the only link to the
// eventual webhook.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, credits int) (*SessionDescriptor, error) {
	pkg, ok := creditCatalog[credits]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPackage, credits)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(checkoutCurrency),
					UnitAmount: stripe.Int64(pkg.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pkg.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.frontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.frontendURL + "/payment-cancel"),
		ClientReferenceID: stripe.String(userID),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)
	params.AddMetadata(MetadataCredits, strconv.Itoa(pkg.Credits))

	sess, err := s.sessions.New(params)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to create checkout session",
			zap.String("user_id", userID),
			zap.Int("credits", credits),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &SessionDescriptor{SessionID: sess.ID, SessionURL: sess.URL}, nil
}
