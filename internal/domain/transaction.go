package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OwnerKind discriminates the ledger a transaction belongs to
type OwnerKind string

const (
	OwnerTenant    OwnerKind = "tenant"
	OwnerOrganizer OwnerKind = "organizer"
	OwnerAdmin     OwnerKind = "admin"
)

// ClassificationOrder is the order primary rows are matched in on a callback
var ClassificationOrder = []OwnerKind{OwnerTenant, OwnerAdmin, OwnerOrganizer}

// Priority returns the position of the kind in ClassificationOrder
func (k OwnerKind) Priority() int {
	for i, kind := range ClassificationOrder {
		if kind == k {
			return i
		}
	}
	return len(ClassificationOrder)
}

// IsValid returns true for a known owner kind
func (k OwnerKind) IsValid() bool {
	return k.Priority() < len(ClassificationOrder)
}

// TransactionType constants
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// TransactionStatus constants
type TransactionStatus string

const (
	TxPending  TransactionStatus = "pending"
	TxApproved TransactionStatus = "approved"
	TxRejected TransactionStatus = "rejected"
)

// Categories
const (
	CategorySubscription  = "Langganan"
	CategoryRent          = "Sewa Tapak"
	CategoryPublicPayment = "Bayaran Awam"
)

// Payment methods
const (
	MethodGateway = "gateway"
	MethodManual  = "manual"
)

// Reconciliation result types
const (
	ReconcileTenantPayment = "tenant_payment"
	ReconcileSubscription  = "subscription"
	ReconcilePublicPayment = "public_payment"
)

// Transaction is a ledger row
type Transaction struct {
	ID        int64     `json:"id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	// OwnerID is zero for the admin ledger
	OwnerID          int64             `json:"owner_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Description      string            `json:"description"`
	Type             TransactionType   `json:"type"`
	Category         string            `json:"category"`
	Date             time.Time         `json:"date"`
	Status           TransactionStatus `json:"status"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	ReceiptURL       string            `json:"receipt_url,omitempty"`
	Metadata         Metadata          `json:"metadata,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	// CounterpartOf points to the primary row of a bookkeeping counterpart
	CounterpartOf *int64    `json:"counterpart_of,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the rules shared by every ledger row
func (t *Transaction) Validate() error {
	if !t.OwnerKind.IsValid() {
		return NewValidationError("Jenis lejar tidak sah")
	}
	if t.OwnerKind != OwnerAdmin && t.OwnerID <= 0 {
		return NewValidationError("Pemilik transaksi diperlukan")
	}
	if !t.Amount.IsPositive() {
		return NewValidationError("Jumlah mesti lebih daripada sifar")
	}
	if t.Type != TypeIncome && t.Type != TypeExpense {
		return NewValidationError("Jenis transaksi tidak sah")
	}
	if strings.TrimSpace(t.Category) == "" {
		return NewValidationError("Kategori diperlukan")
	}
	return nil
}

// ReconcileType maps the owner ledger to the callback result type
func (t *Transaction) ReconcileType() string {
	switch t.OwnerKind {
	case OwnerTenant:
		return ReconcileTenantPayment
	case OwnerAdmin:
		return ReconcileSubscription
	default:
		return ReconcilePublicPayment
	}
}

// Counterpart builds the approved mirror row in another ledger
func (t *Transaction) Counterpart(kind OwnerKind, ownerID int64, now time.Time) *Transaction {
	typ := TypeIncome
	if t.Type == TypeIncome {
		typ = TypeExpense
	}
	primary := t.ID
	return &Transaction{
		OwnerKind:        kind,
		OwnerID:          ownerID,
		Amount:           t.Amount,
		Description:      t.Description,
		Type:             typ,
		Category:         t.Category,
		Date:             now,
		Status:           TxApproved,
		PaymentMethod:    t.PaymentMethod,
		PaymentReference: t.PaymentReference,
		ReceiptURL:       t.ReceiptURL,
		Metadata:         t.Metadata,
		CounterpartOf:    &primary,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Metadata is the structured context stored with a ledger row, keyed by category
type Metadata interface {
	Payer() (email, name string)
}

// SubscriptionMetadata is carried by Langganan rows
type SubscriptionMetadata struct {
	UserID     string `json:"user_id"`
	PlanType   string `json:"plan_type"`
	PayerEmail string `json:"payer_email,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
}

func (m *SubscriptionMetadata) Payer() (string, string) {
	return m.PayerEmail, m.PayerName
}

// PaymentMetadata is carried by every other category
type PaymentMetadata struct {
	PayerEmail  string `json:"payer_email,omitempty"`
	PayerName   string `json:"payer_name,omitempty"`
	PayerPhone  string `json:"payer_phone,omitempty"`
	TenantID    int64  `json:"tenant_id,omitempty"`
	OrganizerID int64  `json:"organizer_id,omitempty"`
	LocationID  int64  `json:"location_id,omitempty"`
	RentalID    int64  `json:"rental_id,omitempty"`
}

func (m *PaymentMetadata) Payer() (string, string) {
	return m.PayerEmail, m.PayerName
}

// EncodeMetadata serializes metadata for storage; nil encodes as SQL NULL
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// DecodeMetadata decodes stored metadata into the shape of the category
func DecodeMetadata(category string, raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m Metadata
	if category == CategorySubscription {
		m = &SubscriptionMetadata{}
	} else {
		m = &PaymentMetadata{}
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", category, err)
	}
	return m, nil
}

// PaymentNotification is a normalized gateway callback
type PaymentNotification struct {
	Provider   string
	ProviderID string
	Paid       bool
	State      string
	// PaidAmount is in minor units; zero when the provider did not report it
	PaidAmount int64
	Email      string
	Name       string
	ReceiptURL string
}

// IsSettled reports whether the notification confirms a completed payment
func (n *PaymentNotification) IsSettled() bool {
	return n.Paid && (n.State == "" || strings.EqualFold(n.State, "paid"))
}

// ReconcileResult is the outcome of handling a notification
type ReconcileResult struct {
	Ignored bool
	Type    string
	// FirstTransition is false for a redelivery of an already finalized row
	FirstTransition bool
	TransactionID   int64
}
