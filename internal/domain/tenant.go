package domain

import (
	"regexp"
	"strings"
	"time"
)

// TenantStatus constants
const (
	TenantStatusPending  = "pending"
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// AccountingStatus gates the ledger features of a tenant or organizer
const (
	AccountingActive   = "active"
	AccountingInactive = "inactive"
)

// OrganizerStatus constants
const (
	OrganizerStatusActive   = "active"
	OrganizerStatusInactive = "inactive"
)

// Tenant represents a stallholder account
type Tenant struct {
	ID           int64  `json:"id"`
	ProfileID    string `json:"profile_id"`
	FullName     string `json:"full_name"`
	BusinessName string `json:"business_name"`
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email"`
	// OrganizerCode is the legacy single-organizer link kept for older accounts
	OrganizerCode    string     `json:"organizer_code,omitempty"`
	Status           string     `json:"status"`
	AccountingStatus string     `json:"accounting_status"`
	CreatedAt        time.Time  `json:"created_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Organizer represents a market operator account
type Organizer struct {
	ID               int64     `json:"id"`
	ProfileID        string    `json:"profile_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	OrganizerCode    string    `json:"organizer_code"`
	Status           string    `json:"status"`
	AccountingStatus string    `json:"accounting_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsActive checks if the organizer can accept link requests
func (o *Organizer) IsActive() bool {
	return o.Status == OrganizerStatusActive
}

var organizerCodePattern = regexp.MustCompile(`^[A-Z0-9-]{3,20}$`)

// NormalizeOrganizerCode trims and upper-cases a code and checks its format
func NormalizeOrganizerCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !organizerCodePattern.MatchString(normalized) {
		return "", NewValidationError("Format kod penganjur tidak sah")
	}
	return normalized, nil
}

// MaskEmail hides an address as first two characters + ***@ + first domain label + .***
func MaskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	prefix := local
	if r := []rune(local); len(r) > 2 {
		prefix = string(r[:2])
	}
	label, _, _ := strings.Cut(domainPart, ".")
	return prefix + "***@" + label + ".***"
}
