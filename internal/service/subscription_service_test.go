package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/repository"
)

func TestActivateUserSubscription(t *testing.T) {
	w := newWorld(t)
	svc := w.subscriptions()
	ctx := context.Background()
	amount := decimal.RequireFromString("29.90")

	sub, err := svc.ActivateUserSubscription(ctx, "p-org", amount, "ref-1", "basic")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, domain.OwnerOrganizer, sub.OwnerKind)
	assert.Equal(t, w.organizer.ID, sub.OwnerID)
	assert.Equal(t, fixedNow, sub.StartDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), sub.EndDate)

	org, err := w.store.Organizers().GetByID(ctx, w.organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountingActive, org.AccountingStatus)

	again, err := svc.ActivateUserSubscription(ctx, "p-org", amount, "ref-1", "basic")
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, w.store.Subscriptions(), 1)
}

func TestActivateUserSubscription_Unresolvable(t *testing.T) {
	w := newWorld(t)
	svc := w.subscriptions()
	amount := decimal.RequireFromString("29.90")

	tests := []struct {
		name   string
		userID string
	}{
		{name: "unknown profile", userID: "p-ghost"},
		{name: "staff profile", userID: "p-staff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := svc.ActivateUserSubscription(context.Background(), tt.userID, amount, "ref-"+tt.userID, "basic")
			require.NoError(t, err)
			assert.Nil(t, sub)
		})
	}
	assert.Empty(t, w.store.Subscriptions())
}

func TestHasPremiumAccess(t *testing.T) {
	tests := []struct {
		name        string
		createdAgo  time.Duration
		accounting  string
		subscribe   bool
		wantAllowed bool
		wantReason  domain.AccessReason
	}{
		{name: "inactive accounting", createdAgo: time.Hour, accounting: domain.AccountingInactive, wantReason: domain.AccessInactive},
		{name: "within trial", createdAgo: 3 * 24 * time.Hour, accounting: domain.AccountingActive, wantAllowed: true, wantReason: domain.AccessTrial},
		{name: "trial over", createdAgo: 20 * 24 * time.Hour, accounting: domain.AccountingActive, wantReason: domain.AccessExpired},
		{name: "subscribed", createdAgo: 90 * 24 * time.Hour, subscribe: true, wantAllowed: true, wantReason: domain.AccessSubscription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			ctx := context.Background()
			tenant := w.store.AddTenant(domain.Tenant{
				ProfileID: "p-new", FullName: "Baru", Status: domain.TenantStatusActive,
				AccountingStatus: tt.accounting, CreatedAt: fixedNow.Add(-tt.createdAgo),
			})
			w.store.AddProfile(domain.Profile{ID: "p-new", Role: domain.RoleTenant})
			svc := w.subscriptions()
			if tt.subscribe {
				_, err := svc.ActivateUserSubscription(ctx, "p-new", decimal.NewFromInt(30), "ref-new", "basic")
				require.NoError(t, err)
			}

			decision, err := svc.HasPremiumAccess(ctx, domain.OwnerTenant, tenant.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantReason, decision.Reason)
		})
	}
}

func TestHasPremiumAccess_TrialFromSettings(t *testing.T) {
	w := newWorld(t)
	w.store.SetSetting(domain.SettingTrialPeriodDays, "0")
	tenant := w.store.AddTenant(domain.Tenant{
		ProfileID: "p-new", AccountingStatus: domain.AccountingActive, CreatedAt: fixedNow.Add(-time.Hour),
	})

	decision, err := w.subscriptions().HasPremiumAccess(context.Background(), domain.OwnerTenant, tenant.ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, domain.AccessExpired, decision.Reason)
}

func TestHasPremiumAccess_Errors(t *testing.T) {
	w := newWorld(t)
	svc := w.subscriptions()
	ctx := context.Background()

	_, err := svc.HasPremiumAccess(ctx, domain.OwnerTenant, 9999)
	requireKind(t, err, domain.KindNotFound)

	_, err = svc.HasPremiumAccess(ctx, domain.OwnerAdmin, 0)
	requireKind(t, err, domain.KindValidation)

	_, err = svc.CallerAccess(ctx, w.staff)
	requireKind(t, err, domain.KindAuthorization)
}

// flakySettings fails after the first read
type flakySettings struct {
	reads int
}

func (f *flakySettings) GetAll(ctx context.Context) (map[string]string, error) {
	f.reads++
	if f.reads > 1 {
		return nil, errors.New("connection reset")
	}
	return map[string]string{domain.SettingPaymentMode: "live", domain.SettingTrialPeriodDays: "7"}, nil
}

var _ repository.SettingsRepository = (*flakySettings)(nil)

func TestSettingsService(t *testing.T) {
	defaults := domain.SystemSettings{PaymentMode: domain.PaymentSandbox, TrialPeriodDays: 14}
	now := fixedNow
	clock := func() time.Time { return now }

	t.Run("falls back to last good value", func(t *testing.T) {
		repo := &flakySettings{}
		svc := NewSettingsService(repo, defaults, 0, Deps{Clock: clock})

		first := svc.Get(context.Background())
		assert.Equal(t, domain.PaymentLive, first.PaymentMode)
		assert.Equal(t, 7, first.TrialPeriodDays)

		second := svc.Get(context.Background())
		assert.Equal(t, first, second)
		assert.Equal(t, 2, repo.reads)
	})

	t.Run("caches within ttl", func(t *testing.T) {
		repo := &flakySettings{}
		svc := NewSettingsService(repo, defaults, time.Minute, Deps{Clock: clock})

		svc.Get(context.Background())
		svc.Get(context.Background())
		assert.Equal(t, 1, repo.reads)
	})

	t.Run("defaults when never loaded", func(t *testing.T) {
		repo := &flakySettings{reads: 1}
		svc := NewSettingsService(repo, defaults, 0, Deps{Clock: clock})
		assert.Equal(t, defaults, svc.Get(context.Background()))
	})
}

func TestListPublicLocations(t *testing.T) {
	w := newWorld(t)
	svc := NewLocationService(w.store.Locations(), nil, w.deps)
	ctx := context.Background()

	all, err := svc.ListPublicLocations(ctx, &dto.PublicLocationsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	monthly, err := svc.ListPublicLocations(ctx, &dto.PublicLocationsQuery{OrganizerCode: " org002 ", Type: "monthly"})
	require.NoError(t, err)
	assert.Equal(t, []int64{w.monthly.ID}, locationIDs(monthly))

	none, err := svc.ListPublicLocations(ctx, &dto.PublicLocationsQuery{OrganizerCode: "ORG999"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.ListPublicLocations(ctx, &dto.PublicLocationsQuery{OrganizerCode: "??"})
	requireKind(t, err, domain.KindValidation)
}
