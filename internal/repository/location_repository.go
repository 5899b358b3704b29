package repository

import (
	"context"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// LocationFilter narrows the public location listing
type LocationFilter struct {
	OrganizerCode string
	Type          domain.LocationType
}

// LocationRepository defines the interface for location data access
type LocationRepository interface {
	// GetByID retrieves a location by ID
	GetByID(ctx context.Context, id int64) (*domain.Location, error)
	// ListActiveByOrganizers retrieves active locations of the given organizers
	ListActiveByOrganizers(ctx context.Context, organizerIDs []int64) ([]domain.Location, error)
	// ListPublic retrieves active locations of active organizers
	ListPublic(ctx context.Context, filter LocationFilter) ([]domain.Location, error)
}

// RentalRepository defines the interface for tenant stall assignments
type RentalRepository interface {
	// GetByID retrieves a rental by ID
	GetByID(ctx context.Context, id int64) (*domain.TenantLocation, error)
	// ListActiveByTenant retrieves the tenant's active rentals
	ListActiveByTenant(ctx context.Context, tenantID int64) ([]domain.TenantLocation, error)
	// InsertIfAbsent creates the rental unless the tenant already actively rents the location
	InsertIfAbsent(ctx context.Context, rental *domain.TenantLocation) (bool, error)
}
