package repository

import (
	"context"
	"errors"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// ErrStaleStatus is returned when a compare-and-swap found a different stored status
var ErrStaleStatus = errors.New("stored status changed concurrently")

// RequestOutcome tells what RequestLink did with the (tenant, organizer) pair
type RequestOutcome int

const (
	// RequestCreated inserted a new pending link
	RequestCreated RequestOutcome = iota
	// RequestResurrected reset a rejected link to pending
	RequestResurrected
	// RequestExisting left a pending or approved link untouched
	RequestExisting
)

// LinkRepository defines the interface for tenant-organizer link data access
type LinkRepository interface {
	// RequestLink atomically inserts, resurrects or returns the link of the pair
	RequestLink(ctx context.Context, tenantID, organizerID int64, actor string, now time.Time) (*domain.TenantOrganizerLink, RequestOutcome, error)
	// GetByID retrieves a link by ID
	GetByID(ctx context.Context, id int64) (*domain.TenantOrganizerLink, error)
	// UpdateStatus stores the link if its status is still from and records the transition
	UpdateStatus(ctx context.Context, link *domain.TenantOrganizerLink, from domain.LinkStatus, transition *domain.LinkTransition) error
	// ListPending retrieves pending links, newest request first, optionally for one organizer
	ListPending(ctx context.Context, organizerID *int64) ([]domain.LinkView, error)
	// ListByTenant retrieves every link of a tenant
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.LinkView, error)
	// ApprovedOrganizerIDs retrieves organizers the tenant holds an approved or active link with
	ApprovedOrganizerIDs(ctx context.Context, tenantID int64) ([]int64, error)
	// ListTransitions retrieves the audit trail of a link, oldest first
	ListTransitions(ctx context.Context, linkID int64) ([]domain.LinkTransition, error)
}
