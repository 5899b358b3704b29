package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Provider names
const (
	ProviderBillplz = "billplz"
	ProviderStripe  = "stripe"
)

// ErrInvalidAmount is returned for non-positive or sub-cent amounts
var ErrInvalidAmount = errors.New("amount must be a positive value with at most two decimals")

// Provider defines the interface of a payment provider integration
type Provider interface {
	// CreateBill creates a hosted payment page for the request
	CreateBill(ctx context.Context, req *PaymentRequest) (*PaymentResult, error)
	// Name returns the provider name
	Name() string
}

// PaymentRequest is a provider-agnostic payment initiation
type PaymentRequest struct {
	Amount      decimal.Decimal
	Description string
	PayerEmail  string
	PayerName   string
	CallbackURL string
	RedirectURL string
	// Reference is our own correlation value, echoed back by the provider
	Reference string
}

// PaymentResult is what every provider returns
type PaymentResult struct {
	ProviderID  string
	RedirectURL string
	Provider    string
}

// GatewayError carries a provider HTTP failure for diagnostics
type GatewayError struct {
	Provider   string
	StatusCode int
	Payload    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway returned status %d", e.Provider, e.StatusCode)
}

// ToMinorUnits converts currency units to integer cents
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts integer cents to currency units
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Adapter selects the sandbox or live provider per call
type Adapter struct {
	sandbox Provider
	live    Provider
	timeout time.Duration
}

// NewAdapter creates an adapter; a nil live provider falls back to sandbox
func NewAdapter(sandbox, live Provider, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{sandbox: sandbox, live: live, timeout: timeout}
}

// InitiatePayment creates a bill on the provider chosen by the sandbox flag
func (a *Adapter) InitiatePayment(ctx context.Context, req *PaymentRequest, sandbox bool) (*PaymentResult, error) {
	if _, err := ToMinorUnits(req.Amount); err != nil {
		return nil, err
	}
	provider := a.sandbox
	if !sandbox && a.live != nil {
		provider = a.live
	}
	if provider == nil {
		return nil, errors.New("no payment provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := provider.CreateBill(ctx, req)
	if err != nil {
		return nil, err
	}
	result.Provider = provider.Name()
	return result, nil
}
