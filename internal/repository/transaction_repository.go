package repository

import (
	"context"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// TransactionRepository defines the interface for ledger data access
type TransactionRepository interface {
	// Create inserts a ledger row
	Create(ctx context.Context, tx *domain.Transaction) error
	// GetByID retrieves a ledger row by ID
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// FindPrimaryByReference retrieves the primary row of a payment reference,
	// preferring tenant, then admin, then organizer rows
	FindPrimaryByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// CompareAndSetStatus moves a row from one status to another; false when the stored status differed
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, receiptURL string, now time.Time) (bool, error)
	// CreateCounterpart inserts a bookkeeping counterpart; false when one already exists
	CreateCounterpart(ctx context.Context, tx *domain.Transaction) (bool, error)
}

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	// Create inserts a subscription; false when the payment reference was already used
	Create(ctx context.Context, sub *domain.Subscription) (bool, error)
	// LatestActive retrieves the owner's active subscription ending last
	LatestActive(ctx context.Context, kind domain.OwnerKind, ownerID int64, now time.Time) (*domain.Subscription, error)
}

// SettingsRepository defines the interface for system settings
type SettingsRepository interface {
	// GetAll retrieves every stored setting
	GetAll(ctx context.Context) (map[string]string, error)
}
