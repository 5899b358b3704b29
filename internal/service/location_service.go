package service

import (
	"context"
	"strings"

	"github.com/webdevsha/permitakaun/internal/cache"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/repository"
)

// locationService implements LocationService
type locationService struct {
	locations repository.LocationRepository
	cache     *cache.LocationCache
	deps      Deps
}

// NewLocationService creates a new LocationService; a nil cache always reads the store
func NewLocationService(locations repository.LocationRepository, listingCache *cache.LocationCache, deps Deps) LocationService {
	return &locationService{locations: locations, cache: listingCache, deps: deps.withDefaults()}
}

// ListPublicLocations lists active locations of active organizers
func (s *locationService) ListPublicLocations(ctx context.Context, query *dto.PublicLocationsQuery) (out []domain.Location, err error) {
	ctx, end := startSpan(ctx, "location.list_public")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	filter := repository.LocationFilter{Type: domain.LocationType(query.Type)}
	if code := strings.TrimSpace(query.OrganizerCode); code != "" {
		normalized, err := domain.NormalizeOrganizerCode(code)
		if err != nil {
			return nil, err
		}
		filter.OrganizerCode = normalized
	}

	load := func(ctx context.Context) ([]domain.Location, error) {
		return bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.Location, error) {
			return s.locations.ListPublic(ctx, filter)
		})
	}

	if s.cache == nil {
		out, err = load(ctx)
	} else {
		key := cache.Key(map[string]string{
			"organizer_code": filter.OrganizerCode,
			"type":           string(filter.Type),
		})
		out, err = s.cache.GetOrLoad(ctx, key, load)
	}
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "location.list_public", err)
	}
	if out == nil {
		out = []domain.Location{}
	}
	return out, nil
}
