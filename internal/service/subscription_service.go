package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// subscriptionService implements SubscriptionService
type subscriptionService struct {
	parties
	profiles      repository.ProfileRepository
	subscriptions repository.SubscriptionRepository
	settings      SettingsService
	termDays      int
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(
	profiles repository.ProfileRepository,
	tenants repository.TenantRepository,
	organizers repository.OrganizerRepository,
	subscriptions repository.SubscriptionRepository,
	settings SettingsService,
	termDays int,
	deps Deps,
) SubscriptionService {
	deps = deps.withDefaults()
	return &subscriptionService{
		parties:       parties{tenants: tenants, organizers: organizers, deps: deps},
		profiles:      profiles,
		subscriptions: subscriptions,
		settings:      settings,
		termDays:      termDays,
	}
}

// ActivateUserSubscription activates a paid plan for the profile's tenant or organizer.
// Unresolvable profiles are logged and skipped; the payment stays approved.
func (s *subscriptionService) ActivateUserSubscription(ctx context.Context, userID string, amount decimal.Decimal, paymentRef, planType string) (sub *domain.Subscription, err error) {
	ctx, end := startSpan(ctx, "subscription.activate")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	profile, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Profile, error) {
		return s.profiles.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "profile.get", err)
	}
	if profile == nil {
		s.deps.Logger.WarnContext(ctx, "subscription payer profile not found", zap.String("user_id", userID), zap.String("reference", paymentRef))
		return nil, nil
	}

	caller := domain.Caller{ProfileID: profile.ID, Email: profile.Email, Role: profile.Role}
	kind, ownerID, err := s.resolveOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	if ownerID == 0 {
		s.deps.Logger.WarnContext(ctx, "subscription payer has no tenant or organizer account",
			zap.String("user_id", userID),
			zap.String("role", string(profile.Role)),
			zap.String("reference", paymentRef),
		)
		return nil, nil
	}

	sub, err = domain.NewSubscription(kind, ownerID, planType, amount, paymentRef, s.termDays, s.deps.Clock())
	if err != nil {
		return nil, err
	}

	created, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (bool, error) {
		return s.subscriptions.Create(ctx, sub)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "subscription.create", err)
	}

	err = boundedErr(ctx, s.deps.Timeouts.Database, func(ctx context.Context) error {
		if kind == domain.OwnerTenant {
			return s.tenants.SetAccountingStatus(ctx, ownerID, domain.AccountingActive)
		}
		return s.organizers.SetAccountingStatus(ctx, ownerID, domain.AccountingActive)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "owner.set_accounting_status", err)
	}

	if !created {
		s.deps.Logger.InfoContext(ctx, "subscription already activated for payment", zap.String("reference", paymentRef))
		return nil, nil
	}

	subscriptionsIssued.Inc(ctx, telemetry.OwnerKindAttr(string(kind)))
	s.deps.Logger.InfoContext(ctx, "subscription activated",
		zap.String("owner_kind", string(kind)),
		zap.Int64("owner_id", ownerID),
		zap.String("plan_type", sub.PlanType),
		zap.Time("end_date", sub.EndDate),
	)
	return sub, nil
}

// resolveOwner maps a profile to its tenant or organizer; a zero id means none
func (s *subscriptionService) resolveOwner(ctx context.Context, caller domain.Caller) (domain.OwnerKind, int64, error) {
	switch caller.Role {
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

// HasPremiumAccess decides whether an owner may use premium features
func (s *subscriptionService) HasPremiumAccess(ctx context.Context, kind domain.OwnerKind, ownerID int64) (decision *domain.AccessDecision, err error) {
	ctx, end := startSpan(ctx, "subscription.has_premium_access")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	var (
		accountingStatus string
		createdAt        time.Time
	)
	switch kind {
	case domain.OwnerTenant:
		t, err := s.tenant(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, domain.NewNotFoundError(domain.MsgTenantNotFound)
		}
		accountingStatus, createdAt = t.AccountingStatus, t.CreatedAt
	case domain.OwnerOrganizer:
		o, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Organizer, error) {
			return s.organizers.GetByID(ctx, ownerID)
		})
		if err != nil {
			return nil, mapError(ctx, s.deps.Logger, "organizer.get", err)
		}
		if o == nil {
			return nil, domain.NewNotFoundError("Penganjur tidak dijumpai")
		}
		accountingStatus, createdAt = o.AccountingStatus, o.CreatedAt
	default:
		return nil, domain.NewValidationError("Langganan hanya untuk peniaga atau penganjur")
	}

	now := s.deps.Clock()
	sub, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Subscription, error) {
		return s.subscriptions.LatestActive(ctx, kind, ownerID, now)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "subscription.latest_active", err)
	}

	trialDays := s.settings.Get(ctx).TrialPeriodDays
	d := domain.DecideAccess(accountingStatus, createdAt, sub, trialDays, now)
	return &d, nil
}

// CallerAccess decides premium access for the caller's own account
func (s *subscriptionService) CallerAccess(ctx context.Context, caller domain.Caller) (*domain.AccessDecision, error) {
	kind, ownerID, err := s.resolveOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	if ownerID == 0 {
		return nil, domain.NewForbiddenError()
	}
	return s.HasPremiumAccess(ctx, kind, ownerID)
}
