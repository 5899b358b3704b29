package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webdevsha/permitakaun/internal/domain"
)

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionRepository creates a new PostgresTransactionRepository
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

const transactionColumns = `
	id, owner_kind, owner_id, amount, description, type, category, date, status, payment_method,
	COALESCE(payment_reference, ''), COALESCE(receipt_url, ''), metadata, COALESCE(notes, ''),
	counterpart_of, created_at, updated_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var metadata []byte
	err := row.Scan(
		&t.ID,
		&t.OwnerKind,
		&t.OwnerID,
		&t.Amount,
		&t.Description,
		&t.Type,
		&t.Category,
		&t.Date,
		&t.Status,
		&t.PaymentMethod,
		&t.PaymentReference,
		&t.ReceiptURL,
		&metadata,
		&t.Notes,
		&t.CounterpartOf,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if t.Metadata, err = domain.DecodeMetadata(t.Category, metadata); err != nil {
		return nil, err
	}
	return t, nil
}

const insertTransactionQuery = `
	INSERT INTO transactions (
		owner_kind, owner_id, amount, description, type, category, date, status, payment_method,
		payment_reference, receipt_url, metadata, notes, counterpart_of, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, ''), $14, $15, $16)
`

func transactionArgs(tx *domain.Transaction) ([]interface{}, error) {
	metadata, err := domain.EncodeMetadata(tx.Metadata)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		string(tx.OwnerKind),
		tx.OwnerID,
		tx.Amount,
		tx.Description,
		string(tx.Type),
		tx.Category,
		tx.Date,
		string(tx.Status),
		tx.PaymentMethod,
		tx.PaymentReference,
		tx.ReceiptURL,
		metadata,
		tx.Notes,
		tx.CounterpartOf,
		tx.CreatedAt,
		tx.UpdatedAt,
	}, nil
}

// Create inserts a ledger row
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args, err := transactionArgs(tx)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, insertTransactionQuery+" RETURNING id", args...).Scan(&tx.ID)
}

// GetByID retrieves a ledger row by ID
func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// FindPrimaryByReference retrieves the primary row of a payment reference,
// preferring tenant, then admin, then organizer rows
func (r *PostgresTransactionRepository) FindPrimaryByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE payment_reference = $1 AND counterpart_of IS NULL
		ORDER BY CASE owner_kind WHEN 'tenant' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, id
		LIMIT 1
	`
	return scanTransaction(r.pool.QueryRow(ctx, query, reference))
}

// CompareAndSetStatus moves a row from one status to another; false when the stored status differed
func (r *PostgresTransactionRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, receiptURL string, now time.Time) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $3, receipt_url = COALESCE(NULLIF($4, ''), receipt_url), updated_at = $5
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to), receiptURL, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateCounterpart inserts a bookkeeping counterpart; false when one already exists
func (r *PostgresTransactionRepository) CreateCounterpart(ctx context.Context, tx *domain.Transaction) (bool, error) {
	args, err := transactionArgs(tx)
	if err != nil {
		return false, err
	}
	query := insertTransactionQuery + `
		ON CONFLICT (counterpart_of) WHERE counterpart_of IS NOT NULL DO NOTHING
		RETURNING id
	`
	err = r.pool.QueryRow(ctx, query, args...).Scan(&tx.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PostgresSubscriptionRepository implements SubscriptionRepository using PostgreSQL
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new PostgresSubscriptionRepository
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create inserts a subscription; false when the payment reference was already used
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
		INSERT INTO subscriptions (owner_kind, owner_id, plan_type, status, start_date, end_date, amount, payment_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_reference) DO NOTHING
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		string(sub.OwnerKind),
		sub.OwnerID,
		sub.PlanType,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.Amount,
		sub.PaymentReference,
		sub.CreatedAt,
	).Scan(&sub.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LatestActive retrieves the owner's active subscription ending last
func (r *PostgresSubscriptionRepository) LatestActive(ctx context.Context, kind domain.OwnerKind, ownerID int64, now time.Time) (*domain.Subscription, error) {
	query := `
		SELECT id, owner_kind, owner_id, plan_type, status, start_date, end_date, amount, payment_reference, created_at
		FROM subscriptions
		WHERE owner_kind = $1 AND owner_id = $2 AND status = 'active' AND start_date <= $3 AND end_date > $3
		ORDER BY end_date DESC
		LIMIT 1
	`
	s := &domain.Subscription{}
	err := r.pool.QueryRow(ctx, query, string(kind), ownerID, now).Scan(
		&s.ID,
		&s.OwnerKind,
		&s.OwnerID,
		&s.PlanType,
		&s.Status,
		&s.StartDate,
		&s.EndDate,
		&s.Amount,
		&s.PaymentReference,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// PostgresSettingsRepository implements SettingsRepository using PostgreSQL
type PostgresSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSettingsRepository creates a new PostgresSettingsRepository
func NewPostgresSettingsRepository(pool *pgxpool.Pool) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool}
}

// GetAll retrieves every stored setting
func (r *PostgresSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
