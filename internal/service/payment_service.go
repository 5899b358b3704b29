package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// PaymentInitiator creates hosted payment pages
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, req *gateway.PaymentRequest, sandbox bool) (*gateway.PaymentResult, error)
}

// PaymentConfig holds the payment initiation settings
type PaymentConfig struct {
	// PublicBaseURL is where the gateway sends callbacks and payers return to
	PublicBaseURL string
	PlanPrices    map[string]decimal.Decimal
}

// CallbackPath is the gateway callback route
const CallbackPath = "/api/v1/payments/callback"

// ReturnPath is where payers land after paying
const ReturnPath = "/bayaran/selesai"

// paymentService implements PaymentService
type paymentService struct {
	parties
	locations    repository.LocationRepository
	rentals      repository.RentalRepository
	transactions repository.TransactionRepository
	gateway      PaymentInitiator
	settings     SettingsService
	config       PaymentConfig
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	tenants repository.TenantRepository,
	organizers repository.OrganizerRepository,
	locations repository.LocationRepository,
	rentals repository.RentalRepository,
	transactions repository.TransactionRepository,
	initiator PaymentInitiator,
	settings SettingsService,
	config PaymentConfig,
	deps Deps,
) PaymentService {
	deps = deps.withDefaults()
	return &paymentService{
		parties:      parties{tenants: tenants, organizers: organizers, deps: deps},
		locations:    locations,
		rentals:      rentals,
		transactions: transactions,
		gateway:      initiator,
		settings:     settings,
		config:       config,
	}
}

// InitiateRentPayment creates a pending rent row in the tenant's ledger
func (s *paymentService) InitiateRentPayment(ctx context.Context, caller domain.Caller, rentalID int64) (resp *dto.PaymentInitResponse, err error) {
	ctx, end := startSpan(ctx, "payment.initiate_rent")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	tenant, err := s.tenantOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	rental, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.TenantLocation, error) {
		return s.rentals.GetByID(ctx, rentalID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "rental.get", err)
	}
	if tenant == nil || rental == nil || rental.TenantID != tenant.ID {
		return nil, domain.NewForbiddenError()
	}
	if !rental.IsActive {
		return nil, domain.NewValidationError("Sewaan tapak ini tidak aktif")
	}

	loc, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Location, error) {
		return s.locations.GetByID(ctx, rental.LocationID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "location.get", err)
	}
	if loc == nil {
		return nil, domain.NewNotFoundError("Lokasi tidak dijumpai")
	}
	amount, err := loc.ResolveRate(rental.RateType)
	if err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	tx := &domain.Transaction{
		OwnerKind:     domain.OwnerTenant,
		OwnerID:       tenant.ID,
		Amount:        amount,
		Description:   domain.CategoryRent + " " + loc.Name,
		Type:          domain.TypeExpense,
		Category:      domain.CategoryRent,
		Date:          now,
		Status:        domain.TxPending,
		PaymentMethod: domain.MethodGateway,
		Metadata: &domain.PaymentMetadata{
			PayerEmail:  tenant.Email,
			PayerName:   tenant.FullName,
			PayerPhone:  tenant.PhoneNumber,
			TenantID:    tenant.ID,
			OrganizerID: loc.OrganizerID,
			LocationID:  loc.ID,
			RentalID:    rental.ID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.checkout(ctx, tx, tenant.Email, tenant.FullName)
}

// InitiateSubscriptionPayment records a plan purchase in the admin ledger
func (s *paymentService) InitiateSubscriptionPayment(ctx context.Context, caller domain.Caller, planType string) (resp *dto.PaymentInitResponse, err error) {
	ctx, end := startSpan(ctx, "payment.initiate_subscription")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	plan := strings.ToLower(strings.TrimSpace(planType))
	price, ok := s.config.PlanPrices[plan]
	if !ok || !price.IsPositive() {
		return nil, domain.NewValidationError("Pelan langganan tidak sah")
	}

	var payerName, payerEmail string
	switch caller.Role {
	case domain.RoleTenant:
		t, err := s.tenantOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, domain.NewForbiddenError()
		}
		payerName, payerEmail = t.FullName, t.Email
	case domain.RoleOrganizer:
		o, err := s.organizerOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, domain.NewForbiddenError()
		}
		payerName, payerEmail = o.Name, o.Email
	default:
		return nil, domain.NewForbiddenError()
	}
	if payerEmail == "" {
		payerEmail = caller.Email
	}

	now := s.deps.Clock()
	tx := &domain.Transaction{
		OwnerKind:     domain.OwnerAdmin,
		Amount:        price,
		Description:   domain.CategorySubscription + " " + plan,
		Type:          domain.TypeIncome,
		Category:      domain.CategorySubscription,
		Date:          now,
		Status:        domain.TxPending,
		PaymentMethod: domain.MethodGateway,
		Metadata: &domain.SubscriptionMetadata{
			UserID:     caller.ProfileID,
			PlanType:   plan,
			PayerEmail: payerEmail,
			PayerName:  payerName,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.checkout(ctx, tx, payerEmail, payerName)
}

// InitiatePublicPayment records a walk-in payment in the organizer's ledger
func (s *paymentService) InitiatePublicPayment(ctx context.Context, req *dto.PublicPaymentRequest) (resp *dto.PaymentInitResponse, err error) {
	ctx, end := startSpan(ctx, "payment.initiate_public")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if valid, msg := req.Validate(); !valid {
		return nil, domain.NewValidationError(msg)
	}
	code, err := domain.NormalizeOrganizerCode(req.OrganizerCode)
	if err != nil {
		return nil, err
	}
	org, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Organizer, error) {
		return s.organizers.GetActiveByCode(ctx, code)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "organizer.get_by_code", err)
	}
	if org == nil {
		return nil, domain.NewValidationError(domain.MsgInvalidOrganizerCode)
	}

	meta := &domain.PaymentMetadata{
		PayerEmail:  req.PayerEmail,
		PayerName:   req.PayerName,
		PayerPhone:  req.PayerPhone,
		OrganizerID: org.ID,
	}
	if req.LocationID != nil {
		loc, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Location, error) {
			return s.locations.GetByID(ctx, *req.LocationID)
		})
		if err != nil {
			return nil, mapError(ctx, s.deps.Logger, "location.get", err)
		}
		if loc == nil || !loc.IsActive() || loc.OrganizerID != org.ID {
			return nil, domain.NewValidationError("Lokasi tidak sah untuk penganjur ini")
		}
		meta.LocationID = loc.ID
	}

	now := s.deps.Clock()
	tx := &domain.Transaction{
		OwnerKind:     domain.OwnerOrganizer,
		OwnerID:       org.ID,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		Type:          domain.TypeIncome,
		Category:      domain.CategoryPublicPayment,
		Date:          now,
		Status:        domain.TxPending,
		PaymentMethod: domain.MethodGateway,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.checkout(ctx, tx, req.PayerEmail, req.PayerName)
}

// checkout creates the hosted page, then the pending row keyed by the provider id
func (s *paymentService) checkout(ctx context.Context, tx *domain.Transaction, payerEmail, payerName string) (*dto.PaymentInitResponse, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	base := strings.TrimRight(s.config.PublicBaseURL, "/")
	correlation := uuid.New().String()
	req := &gateway.PaymentRequest{
		Amount:      tx.Amount,
		Description: tx.Description,
		PayerEmail:  payerEmail,
		PayerName:   payerName,
		CallbackURL: base + CallbackPath,
		RedirectURL: base + ReturnPath,
		Reference:   correlation,
	}

	settings := s.settings.Get(ctx)
	started := time.Now()
	result, err := bounded(ctx, s.deps.Timeouts.Gateway, func(ctx context.Context) (*gateway.PaymentResult, error) {
		return s.gateway.InitiatePayment(ctx, req, settings.IsSandbox())
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayLatency.Record(ctx, time.Since(started).Seconds(),
		telemetry.OwnerKindAttr(string(tx.OwnerKind)),
		telemetry.OutcomeAttr(outcome),
	)
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "gateway.initiate", err)
	}

	tx.PaymentReference = result.ProviderID
	err = boundedErr(ctx, s.deps.Timeouts.Database, func(ctx context.Context) error {
		return s.transactions.Create(ctx, tx)
	})
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "payment page created without a ledger row",
			zap.String("provider", result.Provider),
			zap.String("provider_id", result.ProviderID),
			zap.String("correlation", correlation),
		)
		return nil, mapError(ctx, s.deps.Logger, "transaction.create", err)
	}

	paymentsInitiated.Inc(ctx,
		telemetry.OwnerKindAttr(string(tx.OwnerKind)),
		telemetry.ProviderAttr(result.Provider),
	)
	s.deps.Logger.InfoContext(ctx, "payment initiated",
		zap.Int64("transaction_id", tx.ID),
		zap.String("owner_kind", string(tx.OwnerKind)),
		zap.String("provider", result.Provider),
		zap.String("provider_id", result.ProviderID),
		zap.String("correlation", correlation),
	)

	return &dto.PaymentInitResponse{
		TransactionID: tx.ID,
		Reference:     result.ProviderID,
		Provider:      result.Provider,
		RedirectURL:   result.RedirectURL,
		Amount:        tx.Amount,
	}, nil
}

// RecordManualTransaction stores an already settled row in the caller's own ledger
func (s *paymentService) RecordManualTransaction(ctx context.Context, caller domain.Caller, req *dto.ManualTransactionRequest) (resp *dto.TransactionResponse, err error) {
	ctx, end := startSpan(ctx, "payment.record_manual")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if valid, msg := req.Validate(); !valid {
		return nil, domain.NewValidationError(msg)
	}

	kind := domain.OwnerKind(req.OwnerKind)
	var ownerID int64
	switch kind {
	case domain.OwnerTenant:
		t, err := s.tenantOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, domain.NewForbiddenError()
		}
		ownerID = t.ID
	case domain.OwnerOrganizer:
		o, err := s.organizerOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, domain.NewForbiddenError()
		}
		ownerID = o.ID
	default:
		return nil, domain.NewValidationError("Jenis lejar tidak sah")
	}

	now := s.deps.Clock()
	date := now
	if req.Date != "" {
		parsed, parseErr := time.Parse(dto.DateLayout, req.Date)
		if parseErr != nil {
			return nil, domain.NewValidationError(dto.MsgInvalidDate)
		}
		date = parsed
	}
	tx := &domain.Transaction{
		OwnerKind:     kind,
		OwnerID:       ownerID,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		Type:          domain.TransactionType(req.Type),
		Category:      strings.TrimSpace(req.Category),
		Date:          date,
		Status:        domain.TxApproved,
		PaymentMethod: domain.MethodManual,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	err = boundedErr(ctx, s.deps.Timeouts.Database, func(ctx context.Context) error {
		return s.transactions.Create(ctx, tx)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "transaction.create", err)
	}
	return dto.FromTransaction(tx), nil
}
