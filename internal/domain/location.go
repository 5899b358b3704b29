package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationType is the rental cadence of a location
type LocationType string

const (
	LocationDaily   LocationType = "daily"
	LocationMonthly LocationType = "monthly"
)

// RateType selects a stall category at a cadence
type RateType string

const (
	RateKhemah        RateType = "khemah"
	RateCBS           RateType = "cbs"
	RateMonthlyKhemah RateType = "monthly_khemah"
	RateMonthlyCBS    RateType = "monthly_cbs"
)

// LocationStatus constants
const (
	LocationStatusActive   = "active"
	LocationStatusInactive = "inactive"
)

// Location is a rentable site owned by one organizer
type Location struct {
	ID                int64           `json:"id"`
	OrganizerID       int64           `json:"organizer_id"`
	Name              string          `json:"name"`
	Type              LocationType    `json:"type"`
	RateKhemah        decimal.Decimal `json:"rate_khemah"`
	RateCBS           decimal.Decimal `json:"rate_cbs"`
	RateMonthlyKhemah decimal.Decimal `json:"rate_monthly_khemah"`
	RateMonthlyCBS    decimal.Decimal `json:"rate_monthly_cbs"`
	TotalLots         int             `json:"total_lots"`
	OperatingDays     string          `json:"operating_days"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsActive checks if the location is open for rentals
func (l *Location) IsActive() bool {
	return l.Status == LocationStatusActive
}

// DefaultRateType returns the khemah rate of the location's cadence
func (l *Location) DefaultRateType() RateType {
	if l.Type == LocationMonthly {
		return RateMonthlyKhemah
	}
	return RateKhemah
}

// ResolveRate returns the single positive amount for a rate type valid at this cadence
func (l *Location) ResolveRate(rateType RateType) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch {
	case l.Type == LocationDaily && rateType == RateKhemah:
		amount = l.RateKhemah
	case l.Type == LocationDaily && rateType == RateCBS:
		amount = l.RateCBS
	case l.Type == LocationMonthly && rateType == RateMonthlyKhemah:
		amount = l.RateMonthlyKhemah
	case l.Type == LocationMonthly && rateType == RateMonthlyCBS:
		amount = l.RateMonthlyCBS
	default:
		return decimal.Zero, NewValidationError("Jenis kadar tidak sah untuk lokasi ini")
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewValidationError("Kadar sewa lokasi belum ditetapkan")
	}
	return amount, nil
}

// TenantLocation status constants
const (
	RentalStatusPending  = "pending"
	RentalStatusActive   = "active"
	RentalStatusInactive = "inactive"
)

// TenantLocation is a stall assigned to a tenant
type TenantLocation struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	LocationID  int64     `json:"location_id"`
	OrganizerID int64     `json:"organizer_id"`
	Status      string    `json:"status"`
	RateType    RateType  `json:"rate_type"`
	StallNumber string    `json:"stall_number,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
