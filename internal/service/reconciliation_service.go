package service

import (
	"context"
	"strings"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/internal/notify"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// Reconciliation outcomes recorded on the outcome counter
const (
	OutcomeIgnored   = "ignored"
	OutcomeNotFound  = "not_found"
	OutcomeApproved  = "approved"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeReverted  = "reverted"
)

// Review actions
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// reconciliationService implements ReconciliationService
type reconciliationService struct {
	parties
	profiles      repository.ProfileRepository
	transactions  repository.TransactionRepository
	subscriptions SubscriptionService
	notifier      notify.Notifier
}

// NewReconciliationService creates a new ReconciliationService; a nil notifier sends nothing
func NewReconciliationService(
	profiles repository.ProfileRepository,
	tenants repository.TenantRepository,
	organizers repository.OrganizerRepository,
	transactions repository.TransactionRepository,
	subscriptions SubscriptionService,
	notifier notify.Notifier,
	deps Deps,
) ReconciliationService {
	deps = deps.withDefaults()
	return &reconciliationService{
		parties:       parties{tenants: tenants, organizers: organizers, deps: deps},
		profiles:      profiles,
		transactions:  transactions,
		subscriptions: subscriptions,
		notifier:      notifier,
	}
}

// HandleNotification settles the primary row of a gateway notification exactly once
func (s *reconciliationService) HandleNotification(ctx context.Context, n *domain.PaymentNotification) (result *domain.ReconcileResult, err error) {
	ctx, end := startSpan(ctx, "reconcile.handle_notification")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if !n.IsSettled() {
		s.outcome(ctx, OutcomeIgnored, "")
		s.deps.Logger.InfoContext(ctx, "unsettled payment notification ignored",
			zap.String("provider", n.Provider),
			zap.String("provider_id", n.ProviderID),
			zap.String("state", n.State),
		)
		return &domain.ReconcileResult{Ignored: true}, nil
	}

	reference := strings.TrimSpace(n.ProviderID)
	if reference == "" {
		return nil, domain.NewValidationError("Rujukan pembayaran diperlukan")
	}

	tx, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Transaction, error) {
		return s.transactions.FindPrimaryByReference(ctx, reference)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "transaction.find_by_reference", err)
	}
	if tx == nil {
		s.outcome(ctx, OutcomeNotFound, "")
		s.deps.Logger.WarnContext(ctx, "payment notification without a matching transaction",
			zap.String("provider", n.Provider),
			zap.String("reference", reference),
		)
		return nil, domain.NewNotFoundError(domain.MsgTransactionNotFound)
	}

	if n.PaidAmount > 0 {
		if paid := gateway.FromMinorUnits(n.PaidAmount); !paid.Equal(tx.Amount) {
			s.deps.Logger.WarnContext(ctx, "paid amount differs from transaction amount",
				zap.Int64("transaction_id", tx.ID),
				zap.String("reference", reference),
				zap.String("expected", tx.Amount.StringFixed(2)),
				zap.String("paid", paid.StringFixed(2)),
			)
		}
	}

	result = &domain.ReconcileResult{Type: tx.ReconcileType(), TransactionID: tx.ID}
	moved, current, err := s.transition(ctx, tx, domain.TxPending, domain.TxApproved, n.ReceiptURL)
	if err != nil {
		return nil, err
	}
	if !moved {
		switch current.Status {
		case domain.TxApproved:
			s.outcome(ctx, OutcomeDuplicate, tx.OwnerKind)
			s.deps.Logger.InfoContext(ctx, "payment notification redelivered",
				zap.Int64("transaction_id", tx.ID),
				zap.String("reference", reference),
			)
		case domain.TxRejected:
			s.outcome(ctx, OutcomeRejected, tx.OwnerKind)
			s.deps.Logger.WarnContext(ctx, "paid notification for a rejected transaction",
				zap.Int64("transaction_id", tx.ID),
				zap.String("reference", reference),
			)
		default:
			// an approval was reverted mid-flight; the gateway retries
			return nil, domain.NewConflictError(domain.MsgTransactionReviewed, string(current.Status))
		}
		return result, nil
	}

	if err := s.settle(ctx, current); err != nil {
		return nil, err
	}
	s.notify(ctx, current, n.Email, n.Name)

	result.FirstTransition = true
	return result, nil
}

// ReviewTransaction lets an admin approve or reject a pending primary row
func (s *reconciliationService) ReviewTransaction(ctx context.Context, caller domain.Caller, id int64, action string) (resp *dto.TransactionResponse, err error) {
	ctx, end := startSpan(ctx, "reconcile.review_transaction")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if !caller.IsAdmin() {
		return nil, domain.NewForbiddenError()
	}
	var target domain.TransactionStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ReviewApprove:
		target = domain.TxApproved
	case ReviewReject:
		target = domain.TxRejected
	default:
		return nil, domain.NewValidationError("Tindakan mesti 'approve' atau 'reject'")
	}

	tx, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Transaction, error) {
		return s.transactions.GetByID(ctx, id)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "transaction.get", err)
	}
	if tx == nil {
		return nil, domain.NewNotFoundError(domain.MsgTransactionNotFound)
	}
	if tx.CounterpartOf != nil {
		return nil, domain.NewValidationError("Rekod pasangan tidak boleh disemak")
	}
	if tx.Status != domain.TxPending {
		return nil, domain.NewConflictError(domain.MsgTransactionReviewed, string(tx.Status))
	}

	moved, current, err := s.transition(ctx, tx, domain.TxPending, target, "")
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.NewConflictError(domain.MsgTransactionReviewed, string(current.Status))
	}

	if target == domain.TxApproved {
		if err := s.settle(ctx, current); err != nil {
			return nil, err
		}
		s.notify(ctx, current, "", "")
	} else {
		s.outcome(ctx, OutcomeRejected, current.OwnerKind)
	}

	s.deps.Logger.InfoContext(ctx, "transaction reviewed",
		zap.Int64("transaction_id", current.ID),
		zap.String("status", string(current.Status)),
		zap.String("actor", caller.ProfileID),
	)
	return dto.FromTransaction(current), nil
}

// transition moves the row with a compare-and-swap. When another writer got there first
// it reports false with the stored row.
func (s *reconciliationService) transition(ctx context.Context, tx *domain.Transaction, from, to domain.TransactionStatus, receiptURL string) (bool, *domain.Transaction, error) {
	now := s.deps.Clock()
	moved, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (bool, error) {
		return s.transactions.CompareAndSetStatus(ctx, tx.ID, from, to, receiptURL, now)
	})
	if err != nil {
		return false, nil, mapError(ctx, s.deps.Logger, "transaction.set_status", err)
	}
	if moved {
		updated := *tx
		updated.Status = to
		updated.UpdatedAt = now
		if receiptURL != "" {
			updated.ReceiptURL = receiptURL
		}
		return true, &updated, nil
	}

	current, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Transaction, error) {
		return s.transactions.GetByID(ctx, tx.ID)
	})
	if err != nil {
		return false, nil, mapError(ctx, s.deps.Logger, "transaction.get", err)
	}
	if current == nil {
		return false, nil, domain.NewNotFoundError(domain.MsgTransactionNotFound)
	}
	return false, current, nil
}

// settle runs the side effects of a first approval. On failure the row goes back to
// pending so a redelivery retries; every side effect is idempotent.
func (s *reconciliationService) settle(ctx context.Context, tx *domain.Transaction) error {
	err := s.applySideEffects(ctx, tx)
	if err == nil {
		s.outcome(ctx, OutcomeApproved, tx.OwnerKind)
		return nil
	}

	s.outcome(ctx, OutcomeReverted, tx.OwnerKind)
	reverted, revertErr := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (bool, error) {
		return s.transactions.CompareAndSetStatus(ctx, tx.ID, domain.TxApproved, domain.TxPending, "", s.deps.Clock())
	})
	if revertErr != nil || !reverted {
		s.deps.Logger.ErrorContext(ctx, "failed to revert approval after side effect failure",
			zap.Int64("transaction_id", tx.ID),
			zap.Bool("reverted", reverted),
			zap.Error(revertErr),
		)
	} else {
		s.deps.Logger.WarnContext(ctx, "approval reverted after side effect failure",
			zap.Int64("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
	if domain.IsKind(err, domain.KindTimeout) {
		return err
	}
	return domain.NewInternalError(err)
}

func (s *reconciliationService) applySideEffects(ctx context.Context, tx *domain.Transaction) error {
	now := s.deps.Clock()
	switch tx.OwnerKind {
	case domain.OwnerTenant:
		meta, _ := tx.Metadata.(*domain.PaymentMetadata)
		if meta == nil || meta.OrganizerID == 0 {
			s.deps.Logger.WarnContext(ctx, "tenant payment without organizer, no counterpart written",
				zap.Int64("transaction_id", tx.ID),
			)
			return nil
		}
		return s.writeCounterpart(ctx, tx.Counterpart(domain.OwnerOrganizer, meta.OrganizerID, now))

	case domain.OwnerAdmin:
		meta, _ := tx.Metadata.(*domain.SubscriptionMetadata)
		if meta == nil || meta.UserID == "" {
			s.deps.Logger.WarnContext(ctx, "subscription payment without user metadata",
				zap.Int64("transaction_id", tx.ID),
			)
			return nil
		}
		if _, err := s.subscriptions.ActivateUserSubscription(ctx, meta.UserID, tx.Amount, tx.PaymentReference, meta.PlanType); err != nil {
			return err
		}
		kind, ownerID, err := s.payerLedger(ctx, meta.UserID)
		if err != nil {
			return err
		}
		if ownerID == 0 {
			return nil
		}
		return s.writeCounterpart(ctx, tx.Counterpart(kind, ownerID, now))
	}
	return nil
}

// payerLedger resolves the tenant or organizer ledger of a profile; zero id when none
func (s *reconciliationService) payerLedger(ctx context.Context, userID string) (domain.OwnerKind, int64, error) {
	profile, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Profile, error) {
		return s.profiles.GetByID(ctx, userID)
	})
	if err != nil {
		return "", 0, mapError(ctx, s.deps.Logger, "profile.get", err)
	}
	if profile == nil {
		return "", 0, nil
	}
	caller := domain.Caller{ProfileID: profile.ID, Email: profile.Email, Role: profile.Role}
	switch profile.Role {
	case domain.RoleTenant:
		t, err := s.tenantOf(ctx, caller)
		if err != nil || t == nil {
			return domain.OwnerTenant, 0, err
		}
		return domain.OwnerTenant, t.ID, nil
	case domain.RoleOrganizer:
		o, err := s.organizerOf(ctx, caller)
		if err != nil || o == nil {
			return domain.OwnerOrganizer, 0, err
		}
		return domain.OwnerOrganizer, o.ID, nil
	}
	return "", 0, nil
}

func (s *reconciliationService) writeCounterpart(ctx context.Context, counterpart *domain.Transaction) error {
	created, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (bool, error) {
		return s.transactions.CreateCounterpart(ctx, counterpart)
	})
	if err != nil {
		return mapError(ctx, s.deps.Logger, "transaction.create_counterpart", err)
	}
	if created {
		s.deps.Logger.InfoContext(ctx, "counterpart recorded",
			zap.Int64("counterpart_of", *counterpart.CounterpartOf),
			zap.String("owner_kind", string(counterpart.OwnerKind)),
			zap.Int64("owner_id", counterpart.OwnerID),
		)
	}
	return nil
}

// notify sends the payer receipt and the admin summary; failures are only logged
func (s *reconciliationService) notify(ctx context.Context, tx *domain.Transaction, fallbackEmail, fallbackName string) {
	if s.notifier == nil {
		return
	}
	email, name := fallbackEmail, fallbackName
	if tx.Metadata != nil {
		if e, n := tx.Metadata.Payer(); e != "" {
			email, name = e, n
		}
	}
	receipt := notify.Receipt{
		Email:       email,
		Name:        name,
		Amount:      tx.Amount,
		Description: tx.Description,
		Date:        s.deps.Clock(),
		Reference:   tx.PaymentReference,
		ReceiptURL:  tx.ReceiptURL,
		Type:        tx.ReconcileType(),
	}

	if receipt.Email != "" {
		err := boundedErr(ctx, s.deps.Timeouts.Notify, func(ctx context.Context) error {
			return s.notifier.SendReceipt(ctx, receipt)
		})
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "payment receipt not sent", zap.Int64("transaction_id", tx.ID), zap.Error(err))
		}
	}
	err := boundedErr(ctx, s.deps.Timeouts.Notify, func(ctx context.Context) error {
		return s.notifier.SendAdminSummary(ctx, receipt)
	})
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "admin payment summary not sent", zap.Int64("transaction_id", tx.ID), zap.Error(err))
	}
}

func (s *reconciliationService) outcome(ctx context.Context, outcome string, kind domain.OwnerKind) {
	reconcileOutcomes.Inc(ctx, telemetry.OutcomeAttr(outcome), telemetry.OwnerKindAttr(string(kind)))
}
