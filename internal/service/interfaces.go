package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
)

// LinkService defines the tenant-organizer linkage workflow
type LinkService interface {
	// ValidateOrganizerByCode resolves an active organizer by its public code
	ValidateOrganizerByCode(ctx context.Context, code string) (*dto.OrganizerValidationResponse, error)
	// RequestOrganizerLink creates or resubmits the caller's request to join an organizer
	RequestOrganizerLink(ctx context.Context, caller domain.Caller, tenantID int64, code string) (*dto.RequestLinkResponse, error)
	// GetPendingRequests lists pending requests visible to the caller
	GetPendingRequests(ctx context.Context, caller domain.Caller, organizerID *int64) ([]dto.LinkResponse, error)
	// ProcessTenantRequest approves or rejects a pending request
	ProcessTenantRequest(ctx context.Context, caller domain.Caller, linkID int64, action string, reason *string) (*dto.LinkResponse, error)
	// ListTenantOrganizers lists every link of a tenant
	ListTenantOrganizers(ctx context.Context, caller domain.Caller, tenantID int64) ([]dto.LinkResponse, error)
	// GetLinkHistory returns the status trail of a link
	GetLinkHistory(ctx context.Context, caller domain.Caller, linkID int64) ([]dto.LinkTransitionResponse, error)
}

// RentalService defines location visibility and stall assignment for linked tenants
type RentalService interface {
	// GetAvailableLocationsForTenant lists locations the tenant may rent
	GetAvailableLocationsForTenant(ctx context.Context, caller domain.Caller, tenantID int64) ([]domain.Location, error)
	// AddTenantLocations assigns several locations, skipping the ones that cannot be rented
	AddTenantLocations(ctx context.Context, caller domain.Caller, tenantID int64, req *dto.AddLocationsRequest) (*dto.AddLocationsResponse, error)
}

// LocationService defines the public location listing
type LocationService interface {
	// ListPublicLocations lists active locations of active organizers
	ListPublicLocations(ctx context.Context, query *dto.PublicLocationsQuery) ([]domain.Location, error)
}

// SettingsService defines access to runtime system settings
type SettingsService interface {
	// Get returns stored settings overlaid on configured defaults
	Get(ctx context.Context) domain.SystemSettings
}

// SubscriptionService defines subscription activation and the premium gate
type SubscriptionService interface {
	// ActivateUserSubscription activates a paid plan for the profile's tenant or organizer
	ActivateUserSubscription(ctx context.Context, userID string, amount decimal.Decimal, paymentRef, planType string) (*domain.Subscription, error)
	// HasPremiumAccess decides whether an owner may use premium features
	HasPremiumAccess(ctx context.Context, kind domain.OwnerKind, ownerID int64) (*domain.AccessDecision, error)
	// CallerAccess decides premium access for the caller's own account
	CallerAccess(ctx context.Context, caller domain.Caller) (*domain.AccessDecision, error)
}

// PaymentService defines payment initiation and manual records
type PaymentService interface {
	// InitiateRentPayment creates a pending rent row and a hosted payment page
	InitiateRentPayment(ctx context.Context, caller domain.Caller, rentalID int64) (*dto.PaymentInitResponse, error)
	// InitiateSubscriptionPayment creates a pending plan purchase and a hosted payment page
	InitiateSubscriptionPayment(ctx context.Context, caller domain.Caller, planType string) (*dto.PaymentInitResponse, error)
	// InitiatePublicPayment creates a pending organizer income row for a payer without login
	InitiatePublicPayment(ctx context.Context, req *dto.PublicPaymentRequest) (*dto.PaymentInitResponse, error)
	// RecordManualTransaction stores an already settled row in the caller's ledger
	RecordManualTransaction(ctx context.Context, caller domain.Caller, req *dto.ManualTransactionRequest) (*dto.TransactionResponse, error)
}

// ReconciliationService defines gateway notification handling
type ReconciliationService interface {
	// HandleNotification finalizes the ledger row of a settled payment
	HandleNotification(ctx context.Context, n *domain.PaymentNotification) (*domain.ReconcileResult, error)
	// ReviewTransaction lets an admin approve or reject a pending row
	ReviewTransaction(ctx context.Context, caller domain.Caller, id int64, action string) (*dto.TransactionResponse, error)
}
