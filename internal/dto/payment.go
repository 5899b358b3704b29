package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/webdevsha/permitakaun/internal/domain"
)

// RentPaymentRequest represents a tenant paying for a rental
type RentPaymentRequest struct {
	RentalID int64 `json:"rental_id" binding:"required,min=1"`
}

// SubscriptionPaymentRequest represents a tenant or organizer buying a plan
type SubscriptionPaymentRequest struct {
	PlanType string `json:"plan_type" binding:"required,max=50"`
}

// PublicPaymentRequest represents a payment made without logging in
type PublicPaymentRequest struct {
	OrganizerCode string          `json:"organizer_code" binding:"required,max=40"`
	LocationID    *int64          `json:"location_id,omitempty" binding:"omitempty,min=1"`
	PayerName     string          `json:"payer_name" binding:"required,max=255"`
	PayerEmail    string          `json:"payer_email" binding:"required,email"`
	PayerPhone    string          `json:"payer_phone,omitempty" binding:"omitempty,max=30"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description" binding:"required,max=200"`
}

// Validate validates the amount
func (r *PublicPaymentRequest) Validate() (bool, string) {
	if !r.Amount.IsPositive() {
		return false, "Jumlah mesti lebih daripada sifar"
	}
	return true, ""
}

// PaymentInitResponse carries the hosted payment page
type PaymentInitResponse struct {
	TransactionID int64           `json:"transaction_id"`
	Reference     string          `json:"reference"`
	Provider      string          `json:"provider"`
	RedirectURL   string          `json:"redirect_url"`
	Amount        decimal.Decimal `json:"amount"`
}

// DateLayout is the calendar date format accepted for manual ledger rows
const DateLayout = "2006-01-02"

// MsgInvalidDate is returned for a date not in DateLayout
const MsgInvalidDate = "Format tarikh mesti YYYY-MM-DD"

// ManualTransactionRequest represents an owner recording a settled row
type ManualTransactionRequest struct {
	OwnerKind   string          `json:"owner_kind" binding:"required,oneof=tenant organizer"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" binding:"required,oneof=income expense"`
	Category    string          `json:"category" binding:"required,max=100"`
	Description string          `json:"description" binding:"omitempty,max=500"`
	Date        string          `json:"date" binding:"omitempty"`
	Notes       string          `json:"notes" binding:"omitempty,max=1000"`
}

// Validate validates amount and date
func (r *ManualTransactionRequest) Validate() (bool, string) {
	if !r.Amount.IsPositive() {
		return false, "Jumlah mesti lebih daripada sifar"
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return false, MsgInvalidDate
		}
	}
	return true, ""
}

// ReviewTransactionRequest represents an admin decision on a pending row
type ReviewTransactionRequest struct {
	Action string `json:"action" binding:"required"`
}

// TransactionResponse represents ledger row data in response
type TransactionResponse struct {
	ID               int64                    `json:"id"`
	OwnerKind        domain.OwnerKind         `json:"owner_kind"`
	OwnerID          int64                    `json:"owner_id,omitempty"`
	Amount           decimal.Decimal          `json:"amount"`
	Description      string                   `json:"description"`
	Type             domain.TransactionType   `json:"type"`
	Category         string                   `json:"category"`
	Date             time.Time                `json:"date"`
	Status           domain.TransactionStatus `json:"status"`
	PaymentMethod    string                   `json:"payment_method"`
	PaymentReference string                   `json:"payment_reference,omitempty"`
	ReceiptURL       string                   `json:"receipt_url,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
}

// FromTransaction converts a ledger row to TransactionResponse
func FromTransaction(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		OwnerKind:        t.OwnerKind,
		OwnerID:          t.OwnerID,
		Amount:           t.Amount,
		Description:      t.Description,
		Type:             t.Type,
		Category:         t.Category,
		Date:             t.Date,
		Status:           t.Status,
		PaymentMethod:    t.PaymentMethod,
		PaymentReference: t.PaymentReference,
		ReceiptURL:       t.ReceiptURL,
		Notes:            t.Notes,
	}
}

// CallbackResponse is returned to the gateway after reconciliation
type CallbackResponse struct {
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IgnoredResponse acknowledges an unpaid notification
type IgnoredResponse struct {
	Status string `json:"status"`
}

// AccessResponse tells whether the caller may use premium features
type AccessResponse struct {
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
