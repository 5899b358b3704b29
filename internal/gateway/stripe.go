package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/webdevsha/permitakaun/internal/domain"
)

// ErrUnhandledEvent is returned for webhook events that carry no payment outcome
var ErrUnhandledEvent = errors.New("unhandled webhook event")

// StripeConfig holds the Checkout provider settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	// BackendURL overrides the API endpoint (tests point it at an httptest server)
	BackendURL string
	HTTPClient *http.Client
}

// StripeProvider creates Checkout sessions with a nested line items array
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// NewStripeProvider creates a new Checkout provider
func NewStripeProvider(config StripeConfig) *StripeProvider {
	if config.Currency == "" {
		config.Currency = "myr"
	}
	backendConfig := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripe.String(config.BackendURL)
	}
	if config.HTTPClient != nil {
		backendConfig.HTTPClient = config.HTTPClient
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := &client.API{}
	api.Init(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProvider{api: api, config: config}
}

// Name returns the provider name
func (p *StripeProvider) Name() string {
	return ProviderStripe
}

// CreateBill creates a Checkout session and returns its id and hosted page
func (p *StripeProvider) CreateBill(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	minor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.RedirectURL),
		CancelURL:  stripe.String(req.RedirectURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.config.Currency),
					UnitAmount: stripe.Int64(minor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(truncate(req.Description, maxDescriptionLength)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
		params.AddMetadata("reference", req.Reference)
	}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &GatewayError{Provider: ProviderStripe, StatusCode: stripeErr.HTTPStatusCode, Payload: stripeErr.Error()}
		}
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &PaymentResult{ProviderID: session.ID, RedirectURL: session.URL, Provider: ProviderStripe}, nil
}

// ParseWebhook verifies a signed webhook and normalizes checkout completion events
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*domain.PaymentNotification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
	default:
		return nil, ErrUnhandledEvent
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.ID == "" {
		return nil, errors.New("webhook is missing the session id")
	}

	paid := session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	n := &domain.PaymentNotification{
		Provider:   ProviderStripe,
		ProviderID: session.ID,
		Paid:       paid,
		State:      strings.ToLower(string(session.PaymentStatus)),
		PaidAmount: session.AmountTotal,
	}
	if session.CustomerDetails != nil {
		n.Email = session.CustomerDetails.Email
		n.Name = session.CustomerDetails.Name
	}
	return n, nil
}
