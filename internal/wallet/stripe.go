package wallet

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeProcessor wraps the pieces of the Stripe API the wallet uses for
// top-ups.
type StripeProcessor struct {
	webhookSecret string
	currency      string
}

func NewStripeProcessor(apiKey, webhookSecret, currency string) *StripeProcessor {
	stripe.Key = apiKey
	if currency == "" {
		currency = "inr"
	}
	return &StripeProcessor{webhookSecret: webhookSecret, currency: currency}
}

// CreateTopUpIntent creates a PaymentIntent for the given amount in minor
// units. The organization id travels in the intent metadata so the webhook
// can route the credit.
func (p *StripeProcessor) CreateTopUpIntent(ctx context.Context, orgID string, amount int64) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(p.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("organization_id", orgID)
	params.AddMetadata("purpose", "wallet_topup")

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ID, pi.ClientSecret, nil
}

// VerifyEvent checks the webhook signature and parses the event payload.
func (p *StripeProcessor) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("construct event: %w", err)
	}
	return event, nil
}
