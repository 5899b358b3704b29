package dto

import (
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// ValidateOrganizerQuery represents the organizer code lookup
type ValidateOrganizerQuery struct {
	Code string `form:"code" binding:"required,max=40"`
}

// OrganizerValidationResponse tells a tenant whether a code resolves
type OrganizerValidationResponse struct {
	Exists bool   `json:"exists"`
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
}

// RequestLinkRequest represents a tenant's request to join an organizer
type RequestLinkRequest struct {
	OrganizerCode string `json:"organizer_code" binding:"required,max=40"`
}

// ProcessLinkRequest represents an organizer's decision on a request
type ProcessLinkRequest struct {
	Action string  `json:"action" binding:"required"`
	Reason *string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// PendingRequestsQuery filters the pending queue
type PendingRequestsQuery struct {
	OrganizerID *int64 `form:"organizer_id" binding:"omitempty,min=1"`
}

// LinkResponse represents link data in response
type LinkResponse struct {
	ID              int64                   `json:"id"`
	TenantID        int64                   `json:"tenant_id"`
	OrganizerID     int64                   `json:"organizer_id"`
	Status          domain.LinkStatus       `json:"status"`
	RequestedAt     time.Time               `json:"requested_at"`
	ApprovedAt      *time.Time              `json:"approved_at,omitempty"`
	RejectedAt      *time.Time              `json:"rejected_at,omitempty"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	Tenant          *domain.TenantPublic    `json:"tenant,omitempty"`
	Organizer       *domain.OrganizerPublic `json:"organizer,omitempty"`
	DaysPending     *int                    `json:"days_pending,omitempty"`
	IsUrgent        *bool                   `json:"is_urgent,omitempty"`
}

// FromLink converts a domain link to LinkResponse
func FromLink(l *domain.TenantOrganizerLink) *LinkResponse {
	return &LinkResponse{
		ID:              l.ID,
		TenantID:        l.TenantID,
		OrganizerID:     l.OrganizerID,
		Status:          l.Status,
		RequestedAt:     l.RequestedAt,
		ApprovedAt:      l.ApprovedAt,
		RejectedAt:      l.RejectedAt,
		RejectionReason: l.RejectionReason,
	}
}

// FromLinkView converts an enriched link, adding queue age fields for pending links
func FromLinkView(v *domain.LinkView, now time.Time) *LinkResponse {
	resp := FromLink(&v.Link)
	tenant := v.Tenant
	organizer := v.Organizer
	resp.Tenant = &tenant
	resp.Organizer = &organizer
	if v.Link.Status == domain.LinkPending {
		days := v.Link.DaysPending(now)
		urgent := v.Link.IsUrgent(now)
		resp.DaysPending = &days
		resp.IsUrgent = &urgent
	}
	return resp
}

// RequestLinkResponse is returned after a request was created or resubmitted
type RequestLinkResponse struct {
	Link        *LinkResponse `json:"link"`
	Resubmitted bool          `json:"resubmitted"`
}

// LinkTransitionResponse represents one audit trail entry
type LinkTransitionResponse struct {
	FromStatus     domain.LinkStatus `json:"from_status,omitempty"`
	ToStatus       domain.LinkStatus `json:"to_status"`
	ActorProfileID string            `json:"actor_profile_id"`
	Reason         string            `json:"reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AddLocationsRequest represents a bulk stall assignment
type AddLocationsRequest struct {
	LocationIDs []int64 `json:"location_ids" binding:"required,min=1,max=100"`
	RateType    string  `json:"rate_type,omitempty"`
	StallNumber string  `json:"stall_number,omitempty" binding:"omitempty,max=50"`
}

// Validate validates location ids
func (r *AddLocationsRequest) Validate() (bool, string) {
	for _, id := range r.LocationIDs {
		if id <= 0 {
			return false, "ID lokasi tidak sah"
		}
	}
	return true, ""
}

// Skip reasons of a bulk assignment
const (
	SkipNotFound      = "not_found"
	SkipNotLinked     = "organizer_not_linked"
	SkipAlreadyRented = "already_rented"
	SkipInvalidRate   = "invalid_rate_type"
)

// LocationAssignment is the outcome for one location of a bulk assignment
type LocationAssignment struct {
	LocationID int64  `json:"location_id"`
	Inserted   bool   `json:"inserted"`
	RentalID   int64  `json:"rental_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AddLocationsResponse summarizes a bulk assignment
type AddLocationsResponse struct {
	Inserted int                  `json:"inserted"`
	Skipped  int                  `json:"skipped"`
	Details  []LocationAssignment `json:"details"`
}

// PublicLocationsQuery filters the public location listing
type PublicLocationsQuery struct {
	OrganizerCode string `form:"organizer_code" binding:"omitempty,max=40"`
	Type          string `form:"type" binding:"omitempty,oneof=daily monthly"`
}
