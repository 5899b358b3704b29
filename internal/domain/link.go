package domain

import (
	"errors"
	"strings"
	"time"
)

// LinkStatus represents the state of a tenant-organizer link
type LinkStatus string

const (
	LinkPending  LinkStatus = "pending"
	LinkApproved LinkStatus = "approved"
	// LinkActive is read as a synonym of approved
	LinkActive   LinkStatus = "active"
	LinkRejected LinkStatus = "rejected"
)

// UrgentAfterDays flags pending requests waiting at least this long
const UrgentAfterDays = 3

// ErrInvalidLinkTransition is returned when a link state transition is not allowed
var ErrInvalidLinkTransition = errors.New("invalid link transition")

// validTransitions defines allowed link transitions
// Key is current state, value is list of allowed next states
var validTransitions = map[LinkStatus][]LinkStatus{
	LinkPending:  {LinkApproved, LinkRejected},
	LinkRejected: {LinkPending},
	LinkApproved: {},
	LinkActive:   {},
}

// IsValid returns true if the status is a known link status
func (s LinkStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// IsApproved returns true for approved and its active synonym
func (s LinkStatus) IsApproved() bool {
	return s == LinkApproved || s == LinkActive
}

// CanTransitionTo returns true if transition to the target status is allowed
func (s LinkStatus) CanTransitionTo(target LinkStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// LinkAction is the organizer's decision on a pending request
type LinkAction string

const (
	ActionApprove LinkAction = "approve"
	ActionReject  LinkAction = "reject"
)

// ParseLinkAction validates an action value
func ParseLinkAction(raw string) (LinkAction, error) {
	switch action := LinkAction(strings.ToLower(strings.TrimSpace(raw))); action {
	case ActionApprove, ActionReject:
		return action, nil
	}
	return "", NewValidationError("Tindakan tidak sah, gunakan approve atau reject")
}

// TenantOrganizerLink associates a tenant with an organizer
type TenantOrganizerLink struct {
	ID              int64      `json:"id"`
	TenantID        int64      `json:"tenant_id"`
	OrganizerID     int64      `json:"organizer_id"`
	Status          LinkStatus `json:"status"`
	RequestedAt     time.Time  `json:"requested_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// LinkTransition records one link status change
type LinkTransition struct {
	ID             int64      `json:"id"`
	LinkID         int64      `json:"link_id"`
	FromStatus     LinkStatus `json:"from_status,omitempty"`
	ToStatus       LinkStatus `json:"to_status"`
	ActorProfileID string     `json:"actor_profile_id"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewLinkRequest creates a fresh pending link
func NewLinkRequest(tenantID, organizerID int64, now time.Time) *TenantOrganizerLink {
	return &TenantOrganizerLink{
		TenantID:    tenantID,
		OrganizerID: organizerID,
		Status:      LinkPending,
		RequestedAt: now,
	}
}

func (l *TenantOrganizerLink) transition(to LinkStatus, actor, reason string, now time.Time) (*LinkTransition, error) {
	if !l.Status.CanTransitionTo(to) {
		return nil, ErrInvalidLinkTransition
	}
	t := &LinkTransition{
		LinkID:         l.ID,
		FromStatus:     l.Status,
		ToStatus:       to,
		ActorProfileID: actor,
		Reason:         reason,
		CreatedAt:      now,
	}
	l.Status = to
	return t, nil
}

// Approve moves a pending link to approved and clears rejection fields
func (l *TenantOrganizerLink) Approve(actor string, now time.Time) (*LinkTransition, error) {
	t, err := l.transition(LinkApproved, actor, "", now)
	if err != nil {
		return nil, err
	}
	l.ApprovedAt = &now
	l.RejectedAt = nil
	l.RejectionReason = nil
	return t, nil
}

// Reject moves a pending link to rejected, storing an optional reason
func (l *TenantOrganizerLink) Reject(actor string, reason *string, now time.Time) (*LinkTransition, error) {
	var r string
	if reason != nil {
		r = *reason
	}
	t, err := l.transition(LinkRejected, actor, r, now)
	if err != nil {
		return nil, err
	}
	l.RejectedAt = &now
	l.RejectionReason = reason
	l.ApprovedAt = nil
	return t, nil
}

// Resurrect resets a rejected link to a fresh pending request
func (l *TenantOrganizerLink) Resurrect(actor string, now time.Time) (*LinkTransition, error) {
	t, err := l.transition(LinkPending, actor, "", now)
	if err != nil {
		return nil, err
	}
	l.RequestedAt = now
	l.ApprovedAt = nil
	l.RejectedAt = nil
	l.RejectionReason = nil
	return t, nil
}

// DaysPending returns whole days since the request
func (l *TenantOrganizerLink) DaysPending(now time.Time) int {
	if now.Before(l.RequestedAt) {
		return 0
	}
	return int(now.Sub(l.RequestedAt).Hours() / 24)
}

// IsUrgent flags requests pending for UrgentAfterDays or more
func (l *TenantOrganizerLink) IsUrgent(now time.Time) bool {
	return l.Status == LinkPending && l.DaysPending(now) >= UrgentAfterDays
}

// TenantPublic holds the tenant fields an organizer may see
type TenantPublic struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	BusinessName string `json:"business_name"`
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email"`
}

// OrganizerPublic holds the organizer fields a tenant may see
type OrganizerPublic struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	OrganizerCode string `json:"organizer_code"`
}

// LinkView is a link enriched with both parties' public fields
type LinkView struct {
	Link      TenantOrganizerLink
	Tenant    TenantPublic
	Organizer OrganizerPublic
}
