package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription status constants
const (
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// DefaultTermDays is the fixed subscription term
const DefaultTermDays = 30

// Subscription activates premium features for a tenant or organizer
type Subscription struct {
	ID               int64           `json:"id"`
	OwnerKind        OwnerKind       `json:"owner_kind"`
	OwnerID          int64           `json:"owner_id"`
	PlanType         string          `json:"plan_type"`
	Status           string          `json:"status"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewSubscription creates an active subscription starting now
func NewSubscription(kind OwnerKind, ownerID int64, planType string, amount decimal.Decimal, paymentRef string, termDays int, now time.Time) (*Subscription, error) {
	if kind != OwnerTenant && kind != OwnerOrganizer {
		return nil, NewValidationError("Langganan hanya untuk peniaga atau penganjur")
	}
	if ownerID <= 0 {
		return nil, NewValidationError("Pemilik langganan diperlukan")
	}
	if strings.TrimSpace(paymentRef) == "" {
		return nil, NewValidationError("Rujukan pembayaran diperlukan")
	}
	if termDays <= 0 {
		termDays = DefaultTermDays
	}
	if planType == "" {
		planType = "basic"
	}
	return &Subscription{
		OwnerKind:        kind,
		OwnerID:          ownerID,
		PlanType:         planType,
		Status:           SubscriptionActive,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, termDays),
		Amount:           amount,
		PaymentReference: paymentRef,
		CreatedAt:        now,
	}, nil
}

// IsActiveAt checks if the subscription covers the instant
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// AccessReason explains a premium access decision
type AccessReason string

const (
	AccessSubscription AccessReason = "subscription"
	AccessTrial        AccessReason = "trial"
	AccessInactive     AccessReason = "accounting_inactive"
	AccessExpired      AccessReason = "expired"
)

// AccessDecision is the result of the premium gate
type AccessDecision struct {
	Allowed   bool         `json:"allowed"`
	Reason    AccessReason `json:"reason"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// DecideAccess applies the premium gate: accounting active and either a live
// subscription or still inside the trial window from creation
func DecideAccess(accountingStatus string, createdAt time.Time, sub *Subscription, trialDays int, now time.Time) AccessDecision {
	if accountingStatus != AccountingActive {
		return AccessDecision{Reason: AccessInactive}
	}
	if sub != nil && sub.IsActiveAt(now) {
		end := sub.EndDate
		return AccessDecision{Allowed: true, Reason: AccessSubscription, ExpiresAt: &end}
	}
	trialEnd := createdAt.AddDate(0, 0, trialDays)
	if trialDays > 0 && now.Before(trialEnd) {
		return AccessDecision{Allowed: true, Reason: AccessTrial, ExpiresAt: &trialEnd}
	}
	return AccessDecision{Reason: AccessExpired}
}
