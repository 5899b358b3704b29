package service

import (
	"context"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/repository"
	"go.uber.org/zap"
)

// rentalService implements RentalService
type rentalService struct {
	parties
	links     repository.LinkRepository
	locations repository.LocationRepository
	rentals   repository.RentalRepository
}

// NewRentalService creates a new RentalService
func NewRentalService(
	tenants repository.TenantRepository,
	organizers repository.OrganizerRepository,
	links repository.LinkRepository,
	locations repository.LocationRepository,
	rentals repository.RentalRepository,
	deps Deps,
) RentalService {
	deps = deps.withDefaults()
	return &rentalService{
		parties:   parties{tenants: tenants, organizers: organizers, deps: deps},
		links:     links,
		locations: locations,
		rentals:   rentals,
	}
}

// linkedOrganizers returns the organizers the tenant is approved with, narrowed to the
// caller's own organizer when the caller is one
func (s *rentalService) linkedOrganizers(ctx context.Context, access *tenantAccess) (map[int64]bool, []int64, error) {
	ids, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]int64, error) {
		return s.links.ApprovedOrganizerIDs(ctx, access.tenant.ID)
	})
	if err != nil {
		return nil, nil, mapError(ctx, s.deps.Logger, "link.approved_organizers", err)
	}

	set := make(map[int64]bool, len(ids))
	list := make([]int64, 0, len(ids))
	for _, id := range ids {
		if access.organizerID != 0 && id != access.organizerID {
			continue
		}
		set[id] = true
		list = append(list, id)
	}
	return set, list, nil
}

func (s *rentalService) rentedLocations(ctx context.Context, tenantID int64) (map[int64]bool, error) {
	rentals, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.TenantLocation, error) {
		return s.rentals.ListActiveByTenant(ctx, tenantID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "rental.list_active", err)
	}
	rented := make(map[int64]bool, len(rentals))
	for _, r := range rentals {
		rented[r.LocationID] = true
	}
	return rented, nil
}

// GetAvailableLocationsForTenant lists active locations of approved organizers that
// the tenant does not already rent
func (s *rentalService) GetAvailableLocationsForTenant(ctx context.Context, caller domain.Caller, tenantID int64) (out []domain.Location, err error) {
	ctx, end := startSpan(ctx, "rental.available_locations")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	access, err := s.tenantForRentals(ctx, caller, tenantID)
	if err != nil {
		return nil, err
	}

	_, organizerIDs, err := s.linkedOrganizers(ctx, access)
	if err != nil {
		return nil, err
	}
	if len(organizerIDs) == 0 {
		return []domain.Location{}, nil
	}

	locations, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.Location, error) {
		return s.locations.ListActiveByOrganizers(ctx, organizerIDs)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "location.list_by_organizers", err)
	}

	rented, err := s.rentedLocations(ctx, access.tenant.ID)
	if err != nil {
		return nil, err
	}

	out = make([]domain.Location, 0, len(locations))
	for _, loc := range locations {
		if !rented[loc.ID] {
			out = append(out, loc)
		}
	}
	return out, nil
}

// AddTenantLocations assigns each location independently; one location that cannot be
// rented is skipped without failing the rest
func (s *rentalService) AddTenantLocations(ctx context.Context, caller domain.Caller, tenantID int64, req *dto.AddLocationsRequest) (resp *dto.AddLocationsResponse, err error) {
	ctx, end := startSpan(ctx, "rental.add_locations")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if valid, msg := req.Validate(); !valid {
		return nil, domain.NewValidationError(msg)
	}

	access, err := s.tenantForRentals(ctx, caller, tenantID)
	if err != nil {
		return nil, err
	}
	linked, _, err := s.linkedOrganizers(ctx, access)
	if err != nil {
		return nil, err
	}

	resp = &dto.AddLocationsResponse{Details: make([]dto.LocationAssignment, 0, len(req.LocationIDs))}
	skip := func(locationID int64, reason string) {
		resp.Skipped++
		resp.Details = append(resp.Details, dto.LocationAssignment{LocationID: locationID, Reason: reason})
	}

	for _, locationID := range req.LocationIDs {
		loc, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Location, error) {
			return s.locations.GetByID(ctx, locationID)
		})
		if err != nil {
			return nil, mapError(ctx, s.deps.Logger, "location.get", err)
		}
		if loc == nil || !loc.IsActive() {
			skip(locationID, dto.SkipNotFound)
			continue
		}
		if !linked[loc.OrganizerID] {
			skip(locationID, dto.SkipNotLinked)
			continue
		}

		rateType := domain.RateType(req.RateType)
		if rateType == "" {
			rateType = loc.DefaultRateType()
		}
		if _, err := loc.ResolveRate(rateType); err != nil {
			skip(locationID, dto.SkipInvalidRate)
			continue
		}

		rental := &domain.TenantLocation{
			TenantID:    access.tenant.ID,
			LocationID:  loc.ID,
			OrganizerID: loc.OrganizerID,
			Status:      domain.RentalStatusActive,
			RateType:    rateType,
			StallNumber: req.StallNumber,
			IsActive:    true,
			CreatedAt:   s.deps.Clock(),
		}
		inserted, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (bool, error) {
			return s.rentals.InsertIfAbsent(ctx, rental)
		})
		if err != nil {
			return nil, mapError(ctx, s.deps.Logger, "rental.insert", err)
		}
		if !inserted {
			skip(locationID, dto.SkipAlreadyRented)
			continue
		}

		resp.Inserted++
		resp.Details = append(resp.Details, dto.LocationAssignment{LocationID: locationID, Inserted: true, RentalID: rental.ID})
	}

	s.deps.Logger.InfoContext(ctx, "tenant locations assigned",
		zap.Int64("tenant_id", access.tenant.ID),
		zap.Int("inserted", resp.Inserted),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}
