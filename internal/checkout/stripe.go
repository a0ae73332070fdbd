package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/trendora/trendora-backend/pkg/stripe"
)

// CreatedIntent is the processor-side handle for a card payment.
type CreatedIntent struct {
	ID           string
	ClientSecret string
}

// PaymentIntentClient exposes the subset of Stripe operations checkout needs.
type PaymentIntentClient interface {
	Create(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*CreatedIntent, error)
	Cancel(ctx context.Context, intentID string) error
}

type stripeIntentClient struct{}

// NewPaymentIntentClient wraps the shared Stripe client so the checkout
// service can be tested.
func NewPaymentIntentClient(api *pkgstripe.Client) PaymentIntentClient {
	if api == nil {
		return nil
	}
	return &stripeIntentClient{}
}

func (c *stripeIntentClient) Create(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*CreatedIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &CreatedIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (c *stripeIntentClient) Cancel(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(intentID, params)
	return err
}
