package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webdevsha/permitakaun/internal/domain"
)

// PostgresProfileRepository implements ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository
func NewPostgresProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// profileKey normalizes a profile id; ids that are not UUIDs cannot match any row
func profileKey(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// GetByID retrieves a profile by ID
func (r *PostgresProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	key, ok := profileKey(id)
	if !ok {
		return nil, nil
	}
	query := `
		SELECT id::text, email, full_name, role, created_at
		FROM profiles
		WHERE id = $1::uuid
	`
	p := &domain.Profile{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// PostgresTenantRepository implements TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(pool *pgxpool.Pool) *PostgresTenantRepository {
	return &PostgresTenantRepository{pool: pool}
}

const tenantColumns = `
	id, COALESCE(profile_id::text, ''), full_name, business_name, phone_number, email,
	COALESCE(organizer_code, ''), status, accounting_status, created_at, deleted_at
`

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := row.Scan(
		&t.ID,
		&t.ProfileID,
		&t.FullName,
		&t.BusinessName,
		&t.PhoneNumber,
		&t.Email,
		&t.OrganizerCode,
		&t.Status,
		&t.AccountingStatus,
		&t.CreatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a non-deleted tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL`
	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

// GetByProfileID retrieves the tenant owned by a profile
func (r *PostgresTenantRepository) GetByProfileID(ctx context.Context, profileID string) (*domain.Tenant, error) {
	key, ok := profileKey(profileID)
	if !ok {
		return nil, nil
	}
	query := `
		SELECT ` + tenantColumns + ` FROM tenants
		WHERE profile_id = $1::uuid AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1
	`
	return scanTenant(r.pool.QueryRow(ctx, query, key))
}

// SetAccountingStatus updates the ledger access flag
func (r *PostgresTenantRepository) SetAccountingStatus(ctx context.Context, id int64, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tenants SET accounting_status = $2 WHERE id = $1`, id, status)
	return err
}

// PostgresOrganizerRepository implements OrganizerRepository using PostgreSQL
type PostgresOrganizerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrganizerRepository creates a new PostgresOrganizerRepository
func NewPostgresOrganizerRepository(pool *pgxpool.Pool) *PostgresOrganizerRepository {
	return &PostgresOrganizerRepository{pool: pool}
}

const organizerColumns = `
	id, COALESCE(profile_id::text, ''), name, email, organizer_code, status, accounting_status, created_at
`

func scanOrganizer(row pgx.Row) (*domain.Organizer, error) {
	o := &domain.Organizer{}
	err := row.Scan(
		&o.ID,
		&o.ProfileID,
		&o.Name,
		&o.Email,
		&o.OrganizerCode,
		&o.Status,
		&o.AccountingStatus,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// GetByID retrieves an organizer by ID
func (r *PostgresOrganizerRepository) GetByID(ctx context.Context, id int64) (*domain.Organizer, error) {
	query := `SELECT ` + organizerColumns + ` FROM organizers WHERE id = $1`
	return scanOrganizer(r.pool.QueryRow(ctx, query, id))
}

// GetByProfileID retrieves the organizer owned by a profile
func (r *PostgresOrganizerRepository) GetByProfileID(ctx context.Context, profileID string) (*domain.Organizer, error) {
	key, ok := profileKey(profileID)
	if !ok {
		return nil, nil
	}
	query := `SELECT ` + organizerColumns + ` FROM organizers WHERE profile_id = $1::uuid ORDER BY id LIMIT 1`
	return scanOrganizer(r.pool.QueryRow(ctx, query, key))
}

// GetActiveByCode retrieves the active organizer with the code, case-insensitive
func (r *PostgresOrganizerRepository) GetActiveByCode(ctx context.Context, code string) (*domain.Organizer, error) {
	query := `
		SELECT ` + organizerColumns + ` FROM organizers
		WHERE UPPER(organizer_code) = UPPER($1) AND status = 'active'
	`
	return scanOrganizer(r.pool.QueryRow(ctx, query, code))
}

// SetAccountingStatus updates the ledger access flag
func (r *PostgresOrganizerRepository) SetAccountingStatus(ctx context.Context, id int64, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE organizers SET accounting_status = $2 WHERE id = $1`, id, status)
	return err
}
