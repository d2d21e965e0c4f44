package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

type MockSessionCreator struct{ mock.Mock }

func (m *MockSessionCreator) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func TestCreateCheckoutSession_BuildsParamsFromCatalog(t *testing.T) {
	sessions := new(MockSessionCreator)
	svc := NewCheckoutService(sessions, "https://app.example.com", zap.NewNop())

	var captured *stripe.CheckoutSessionParams
	sessions.On("New", mock.AnythingOfType("*stripe.CheckoutSessionParams")).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*stripe.CheckoutSessionParams) }).
		Return(&stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil).
		Once()

	desc, err := svc.CreateCheckoutSession(context.Background(), "user-1", 100)

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", desc.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", desc.SessionURL)

	require.NotNil(t, captured)
	assert.Equal(t, "payment", *captured.Mode)
	assert.Equal(t, "user-1", *captured.ClientReferenceID)
	assert.Equal(t, "https://app.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}", *captured.SuccessURL)
	assert.Equal(t, "https://app.example.com/payment-cancel", *captured.CancelURL)
	assert.Equal(t, "user-1", captured.Metadata[MetadataUserID])
	assert.Equal(t, "100", captured.Metadata[MetadataCredits])

	require.Len(t, captured.LineItems, 1)
	item := captured.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, int64(1000), *item.PriceData.UnitAmount)
	assert.Equal(t, "100 AI Credits - $10.00", *item.PriceData.ProductData.Name)

	sessions.AssertExpectations(t)
}

func TestCreateCheckoutSession_UnknownPackage(t *testing.T) {
	sessions := new(MockSessionCreator)
	svc := NewCheckoutService(sessions, "https://app.example.com", zap.NewNop())

	for _, credits := range []int{0, 1, 75, -50, 1000} {
		_, err := svc.CreateCheckoutSession(context.Background(), "user-1", credits)
		assert.ErrorIs(t, err, ErrUnknownPackage, "credits=%d", credits)
	}
	sessions.AssertNotCalled(t, "New", mock.Anything)
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	sessions := new(MockSessionCreator)
	svc := NewCheckoutService(sessions, "https://app.example.com", zap.NewNop())
	sessions.On("New", mock.Anything).Return(nil, errors.New("api_connection_error")).Once()

	desc, err := svc.CreateCheckoutSession(context.Background(), "user-1", 50)

	assert.Nil(t, desc)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownPackage)
}

func TestListPackages_OrderedByCredits(t *testing.T) {
	svc := NewCheckoutService(nil, "", zap.NewNop())

	pkgs := svc.ListPackages()

	require.Len(t, pkgs, 3)
	assert.Equal(t, []int{50, 100, 500}, []int{pkgs[0].Credits, pkgs[1].Credits, pkgs[2].Credits})
	assert.Equal(t, int64(4500), pkgs[2].PriceCents)
}
