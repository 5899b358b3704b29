package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webdevsha/permitakaun/internal/domain"
)

// PostgresLocationRepository implements LocationRepository using PostgreSQL
type PostgresLocationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLocationRepository creates a new PostgresLocationRepository
func NewPostgresLocationRepository(pool *pgxpool.Pool) *PostgresLocationRepository {
	return &PostgresLocationRepository{pool: pool}
}

const locationColumns = `
	l.id, l.organizer_id, l.name, l.type, l.rate_khemah, l.rate_cbs, l.rate_monthly_khemah,
	l.rate_monthly_cbs, l.total_lots, l.operating_days, l.status, l.created_at
`

func scanLocation(row pgx.Row) (*domain.Location, error) {
	l := &domain.Location{}
	err := row.Scan(
		&l.ID,
		&l.OrganizerID,
		&l.Name,
		&l.Type,
		&l.RateKhemah,
		&l.RateCBS,
		&l.RateMonthlyKhemah,
		&l.RateMonthlyCBS,
		&l.TotalLots,
		&l.OperatingDays,
		&l.Status,
		&l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (r *PostgresLocationRepository) queryLocations(ctx context.Context, query string, args ...interface{}) ([]domain.Location, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// GetByID retrieves a location by ID
func (r *PostgresLocationRepository) GetByID(ctx context.Context, id int64) (*domain.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.id = $1`
	return scanLocation(r.pool.QueryRow(ctx, query, id))
}

// ListActiveByOrganizers retrieves active locations of the given organizers
func (r *PostgresLocationRepository) ListActiveByOrganizers(ctx context.Context, organizerIDs []int64) ([]domain.Location, error) {
	if len(organizerIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + locationColumns + ` FROM locations l
		WHERE l.organizer_id = ANY($1) AND l.status = 'active'
		ORDER BY l.name
	`
	return r.queryLocations(ctx, query, organizerIDs)
}

// ListPublic retrieves active locations of active organizers
func (r *PostgresLocationRepository) ListPublic(ctx context.Context, filter LocationFilter) ([]domain.Location, error) {
	whereClause := "WHERE l.status = 'active' AND o.status = 'active'"
	args := []interface{}{}
	argIndex := 1

	if filter.OrganizerCode != "" {
		whereClause += fmt.Sprintf(" AND UPPER(o.organizer_code) = UPPER($%d)", argIndex)
		args = append(args, filter.OrganizerCode)
		argIndex++
	}
	if filter.Type != "" {
		whereClause += fmt.Sprintf(" AND l.type = $%d", argIndex)
		args = append(args, string(filter.Type))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM locations l
		JOIN organizers o ON o.id = l.organizer_id
		%s
		ORDER BY l.name
	`, locationColumns, whereClause)
	return r.queryLocations(ctx, query, args...)
}

// PostgresRentalRepository implements RentalRepository using PostgreSQL
type PostgresRentalRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRentalRepository creates a new PostgresRentalRepository
func NewPostgresRentalRepository(pool *pgxpool.Pool) *PostgresRentalRepository {
	return &PostgresRentalRepository{pool: pool}
}

const rentalColumns = `id, tenant_id, location_id, organizer_id, status, rate_type, COALESCE(stall_number, ''), is_active, created_at`

func scanRental(row pgx.Row) (*domain.TenantLocation, error) {
	tl := &domain.TenantLocation{}
	err := row.Scan(
		&tl.ID,
		&tl.TenantID,
		&tl.LocationID,
		&tl.OrganizerID,
		&tl.Status,
		&tl.RateType,
		&tl.StallNumber,
		&tl.IsActive,
		&tl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tl, nil
}

// GetByID retrieves a rental by ID
func (r *PostgresRentalRepository) GetByID(ctx context.Context, id int64) (*domain.TenantLocation, error) {
	query := `SELECT ` + rentalColumns + ` FROM tenant_locations WHERE id = $1`
	return scanRental(r.pool.QueryRow(ctx, query, id))
}

// ListActiveByTenant retrieves the tenant's active rentals
func (r *PostgresRentalRepository) ListActiveByTenant(ctx context.Context, tenantID int64) ([]domain.TenantLocation, error) {
	query := `SELECT ` + rentalColumns + ` FROM tenant_locations WHERE tenant_id = $1 AND is_active ORDER BY id`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TenantLocation
	for rows.Next() {
		tl, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tl)
	}
	return out, rows.Err()
}

// InsertIfAbsent creates the rental unless the tenant already actively rents the location
func (r *PostgresRentalRepository) InsertIfAbsent(ctx context.Context, rental *domain.TenantLocation) (bool, error) {
	query := `
		INSERT INTO tenant_locations (tenant_id, location_id, organizer_id, status, rate_type, stall_number, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), TRUE, $7)
		ON CONFLICT (tenant_id, location_id) WHERE is_active DO NOTHING
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		rental.TenantID,
		rental.LocationID,
		rental.OrganizerID,
		rental.Status,
		string(rental.RateType),
		rental.StallNumber,
		rental.CreatedAt,
	).Scan(&rental.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	rental.IsActive = true
	return true, nil
}
