package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/pkg/database"
)

// PostgresLinkRepository implements LinkRepository using PostgreSQL
type PostgresLinkRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLinkRepository creates a new PostgresLinkRepository
func NewPostgresLinkRepository(pool *pgxpool.Pool) *PostgresLinkRepository {
	return &PostgresLinkRepository{pool: pool}
}

const linkColumns = `id, tenant_id, organizer_id, status, requested_at, approved_at, rejected_at, rejection_reason`

func scanLink(row pgx.Row) (*domain.TenantOrganizerLink, error) {
	l := &domain.TenantOrganizerLink{}
	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.OrganizerID,
		&l.Status,
		&l.RequestedAt,
		&l.ApprovedAt,
		&l.RejectedAt,
		&l.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// RequestLink atomically inserts, resurrects or returns the link of the pair.
// The row lock and the unique pair index keep concurrent requests to one row.
func (r *PostgresLinkRepository) RequestLink(ctx context.Context, tenantID, organizerID int64, actor string, now time.Time) (*domain.TenantOrganizerLink, RequestOutcome, error) {
	var (
		link    *domain.TenantOrganizerLink
		outcome RequestOutcome
	)
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		selectQuery := `SELECT ` + linkColumns + ` FROM tenant_organizers WHERE tenant_id = $1 AND organizer_id = $2 FOR UPDATE`

		existing, err := scanLink(tx.QueryRow(ctx, selectQuery, tenantID, organizerID))
		if err != nil {
			return err
		}

		if existing == nil {
			fresh := domain.NewLinkRequest(tenantID, organizerID, now)
			insertQuery := `
				INSERT INTO tenant_organizers (tenant_id, organizer_id, status, requested_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (tenant_id, organizer_id) DO NOTHING
				RETURNING id
			`
			err := tx.QueryRow(ctx, insertQuery, tenantID, organizerID, fresh.Status, fresh.RequestedAt).Scan(&fresh.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				// a concurrent request won the insert
				existing, err = scanLink(tx.QueryRow(ctx, selectQuery, tenantID, organizerID))
				if err != nil {
					return err
				}
				if existing == nil {
					return errors.New("link vanished after insert conflict")
				}
				link, outcome = existing, RequestExisting
				return nil
			}
			if err != nil {
				return err
			}
			link, outcome = fresh, RequestCreated
			return insertTransition(ctx, tx, &domain.LinkTransition{
				LinkID:         fresh.ID,
				ToStatus:       domain.LinkPending,
				ActorProfileID: actor,
				CreatedAt:      now,
			})
		}

		if existing.Status != domain.LinkRejected {
			link, outcome = existing, RequestExisting
			return nil
		}

		transition, err := existing.Resurrect(actor, now)
		if err != nil {
			return err
		}
		if err := writeLink(ctx, tx, existing, domain.LinkRejected); err != nil {
			return err
		}
		link, outcome = existing, RequestResurrected
		return insertTransition(ctx, tx, transition)
	})
	if err != nil {
		return nil, 0, err
	}
	return link, outcome, nil
}

// GetByID retrieves a link by ID
func (r *PostgresLinkRepository) GetByID(ctx context.Context, id int64) (*domain.TenantOrganizerLink, error) {
	query := `SELECT ` + linkColumns + ` FROM tenant_organizers WHERE id = $1`
	return scanLink(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus stores the link if its status is still from and records the transition
func (r *PostgresLinkRepository) UpdateStatus(ctx context.Context, link *domain.TenantOrganizerLink, from domain.LinkStatus, transition *domain.LinkTransition) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := writeLink(ctx, tx, link, from); err != nil {
			return err
		}
		return insertTransition(ctx, tx, transition)
	})
}

func writeLink(ctx context.Context, tx pgx.Tx, link *domain.TenantOrganizerLink, from domain.LinkStatus) error {
	query := `
		UPDATE tenant_organizers
		SET status = $3, requested_at = $4, approved_at = $5, rejected_at = $6, rejection_reason = $7
		WHERE id = $1 AND status = $2
	`
	tag, err := tx.Exec(ctx, query,
		link.ID,
		from,
		link.Status,
		link.RequestedAt,
		link.ApprovedAt,
		link.RejectedAt,
		link.RejectionReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

func insertTransition(ctx context.Context, tx pgx.Tx, t *domain.LinkTransition) error {
	query := `
		INSERT INTO link_transitions (link_id, from_status, to_status, actor_profile_id, reason, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6)
		RETURNING id
	`
	return tx.QueryRow(ctx, query,
		t.LinkID,
		string(t.FromStatus),
		string(t.ToStatus),
		t.ActorProfileID,
		t.Reason,
		t.CreatedAt,
	).Scan(&t.ID)
}

const linkViewQuery = `
	SELECT l.id, l.tenant_id, l.organizer_id, l.status, l.requested_at, l.approved_at, l.rejected_at,
	       l.rejection_reason,
	       t.id, t.full_name, t.business_name, t.phone_number, t.email,
	       o.id, o.name, o.organizer_code
	FROM tenant_organizers l
	JOIN tenants t ON t.id = l.tenant_id AND t.deleted_at IS NULL
	JOIN organizers o ON o.id = l.organizer_id
`

func (r *PostgresLinkRepository) queryViews(ctx context.Context, query string, args ...interface{}) ([]domain.LinkView, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.LinkView
	for rows.Next() {
		var v domain.LinkView
		if err := rows.Scan(
			&v.Link.ID,
			&v.Link.TenantID,
			&v.Link.OrganizerID,
			&v.Link.Status,
			&v.Link.RequestedAt,
			&v.Link.ApprovedAt,
			&v.Link.RejectedAt,
			&v.Link.RejectionReason,
			&v.Tenant.ID,
			&v.Tenant.FullName,
			&v.Tenant.BusinessName,
			&v.Tenant.PhoneNumber,
			&v.Tenant.Email,
			&v.Organizer.ID,
			&v.Organizer.Name,
			&v.Organizer.OrganizerCode,
		); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListPending retrieves pending links, newest request first, optionally for one organizer
func (r *PostgresLinkRepository) ListPending(ctx context.Context, organizerID *int64) ([]domain.LinkView, error) {
	query := linkViewQuery + `
		WHERE l.status = 'pending' AND ($1::bigint IS NULL OR l.organizer_id = $1)
		ORDER BY l.requested_at DESC
	`
	return r.queryViews(ctx, query, organizerID)
}

// ListByTenant retrieves every link of a tenant
func (r *PostgresLinkRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.LinkView, error) {
	query := linkViewQuery + `
		WHERE l.tenant_id = $1
		ORDER BY l.requested_at DESC
	`
	return r.queryViews(ctx, query, tenantID)
}

// ApprovedOrganizerIDs retrieves organizers the tenant holds an approved or active link with
func (r *PostgresLinkRepository) ApprovedOrganizerIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	query := `
		SELECT organizer_id FROM tenant_organizers
		WHERE tenant_id = $1 AND status IN ('approved', 'active')
		ORDER BY organizer_id
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListTransitions retrieves the audit trail of a link, oldest first
func (r *PostgresLinkRepository) ListTransitions(ctx context.Context, linkID int64) ([]domain.LinkTransition, error) {
	query := `
		SELECT id, link_id, COALESCE(from_status, ''), to_status, actor_profile_id, COALESCE(reason, ''), created_at
		FROM link_transitions
		WHERE link_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LinkTransition
	for rows.Next() {
		var t domain.LinkTransition
		if err := rows.Scan(&t.ID, &t.LinkID, &t.FromStatus, &t.ToStatus, &t.ActorProfileID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
