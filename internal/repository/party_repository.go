package repository

import (
	"context"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// TenantRepository defines the interface for tenant data access
type TenantRepository interface {
	// GetByID retrieves a non-deleted tenant by ID
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	// GetByProfileID retrieves the tenant owned by a profile
	GetByProfileID(ctx context.Context, profileID string) (*domain.Tenant, error)
	// SetAccountingStatus updates the ledger access flag
	SetAccountingStatus(ctx context.Context, id int64, status string) error
}

// OrganizerRepository defines the interface for organizer data access
type OrganizerRepository interface {
	// GetByID retrieves an organizer by ID
	GetByID(ctx context.Context, id int64) (*domain.Organizer, error)
	// GetByProfileID retrieves the organizer owned by a profile
	GetByProfileID(ctx context.Context, profileID string) (*domain.Organizer, error)
	// GetActiveByCode retrieves the active organizer with the code, case-insensitive
	GetActiveByCode(ctx context.Context, code string) (*domain.Organizer, error)
	// SetAccountingStatus updates the ledger access flag
	SetAccountingStatus(ctx context.Context, id int64, status string) error
}
