package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/internal/notify"
	"github.com/webdevsha/permitakaun/internal/repository"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// world is a seeded in-memory marketplace shared by the service tests
type world struct {
	store *repository.MemoryStore
	deps  Deps

	admin        domain.Caller
	staff        domain.Caller
	tenantCaller domain.Caller
	otherTenant  domain.Caller
	orgCaller    domain.Caller
	otherOrg     domain.Caller

	tenant     *domain.Tenant
	tenant2    *domain.Tenant
	organizer  *domain.Organizer
	organizer2 *domain.Organizer
	inactive   *domain.Organizer

	daily   *domain.Location
	monthly *domain.Location
	market  *domain.Location
	foreign *domain.Location
}

func newWorld(t *testing.T) *world {
	t.Helper()
	s := repository.NewMemoryStore()
	w := &world{
		store: s,
		deps:  Deps{Clock: func() time.Time { return fixedNow }},
	}

	created := fixedNow.AddDate(0, -2, 0)
	for _, p := range []domain.Profile{
		{ID: "p-admin", Email: "admin@permitakaun.my", Role: domain.RoleAdmin},
		{ID: "p-staff", Email: "staff@permitakaun.my", Role: domain.RoleStaff},
		{ID: "p-tenant", Email: "ali@example.com", Role: domain.RoleTenant},
		{ID: "p-tenant2", Email: "siti@example.com", Role: domain.RoleTenant},
		{ID: "p-org", Email: "jane@example.com", Role: domain.RoleOrganizer},
		{ID: "p-org2", Email: "bazar@example.com", Role: domain.RoleOrganizer},
	} {
		p.CreatedAt = created
		s.AddProfile(p)
	}
	w.admin = domain.Caller{ProfileID: "p-admin", Email: "admin@permitakaun.my", Role: domain.RoleAdmin}
	w.staff = domain.Caller{ProfileID: "p-staff", Email: "staff@permitakaun.my", Role: domain.RoleStaff}
	w.tenantCaller = domain.Caller{ProfileID: "p-tenant", Email: "ali@example.com", Role: domain.RoleTenant}
	w.otherTenant = domain.Caller{ProfileID: "p-tenant2", Email: "siti@example.com", Role: domain.RoleTenant}
	w.orgCaller = domain.Caller{ProfileID: "p-org", Email: "jane@example.com", Role: domain.RoleOrganizer}
	w.otherOrg = domain.Caller{ProfileID: "p-org2", Email: "bazar@example.com", Role: domain.RoleOrganizer}

	w.organizer = s.AddOrganizer(domain.Organizer{
		ProfileID: "p-org", Name: "Pasar Malam Jane", Email: "jane@example.com",
		OrganizerCode: "ORG002", Status: domain.OrganizerStatusActive,
		AccountingStatus: domain.AccountingInactive, CreatedAt: created,
	})
	w.organizer2 = s.AddOrganizer(domain.Organizer{
		ProfileID: "p-org2", Name: "Bazar Ramadan", Email: "bazar@example.com",
		OrganizerCode: "ORG001", Status: domain.OrganizerStatusActive,
		AccountingStatus: domain.AccountingInactive, CreatedAt: created,
	})
	w.inactive = s.AddOrganizer(domain.Organizer{
		Name: "Tutup", Email: "tutup@example.com", OrganizerCode: "ORG999",
		Status: domain.OrganizerStatusInactive, CreatedAt: created,
	})

	w.tenant = s.AddTenant(domain.Tenant{
		ProfileID: "p-tenant", FullName: "Ali Bin Abu", Email: "ali@example.com", PhoneNumber: "0123456789",
		Status: domain.TenantStatusActive, AccountingStatus: domain.AccountingInactive, CreatedAt: created,
	})
	w.tenant2 = s.AddTenant(domain.Tenant{
		ProfileID: "p-tenant2", FullName: "Siti Aminah", Email: "siti@example.com",
		Status: domain.TenantStatusActive, AccountingStatus: domain.AccountingInactive, CreatedAt: created,
	})

	w.daily = s.AddLocation(domain.Location{
		OrganizerID: w.organizer.ID, Name: "Tapak Jalan TAR", Type: domain.LocationDaily,
		RateKhemah: decimal.RequireFromString("15.50"), RateCBS: decimal.RequireFromString("20"),
		Status: domain.LocationStatusActive, CreatedAt: created,
	})
	w.monthly = s.AddLocation(domain.Location{
		OrganizerID: w.organizer.ID, Name: "Tapak Bulanan Kelana", Type: domain.LocationMonthly,
		RateMonthlyKhemah: decimal.RequireFromString("300"), RateMonthlyCBS: decimal.RequireFromString("350"),
		Status: domain.LocationStatusActive, CreatedAt: created,
	})
	w.market = s.AddLocation(domain.Location{
		OrganizerID: w.organizer.ID, Name: "Pasar Tani", Type: domain.LocationDaily,
		RateKhemah: decimal.RequireFromString("10"), Status: domain.LocationStatusActive, CreatedAt: created,
	})
	w.foreign = s.AddLocation(domain.Location{
		OrganizerID: w.organizer2.ID, Name: "Bazar Ramadan Shah Alam", Type: domain.LocationDaily,
		RateKhemah: decimal.RequireFromString("25"), Status: domain.LocationStatusActive, CreatedAt: created,
	})
	return w
}

func (w *world) links() LinkService {
	return NewLinkService(w.store.Tenants(), w.store.Organizers(), w.store.LinkRepo(), w.deps)
}

func (w *world) rentals() RentalService {
	return NewRentalService(w.store.Tenants(), w.store.Organizers(), w.store.LinkRepo(), w.store.Locations(), w.store.Rentals(), w.deps)
}

func (w *world) settings() SettingsService {
	return NewSettingsService(w.store.Settings(), domain.SystemSettings{PaymentMode: domain.PaymentSandbox, TrialPeriodDays: 14}, 0, w.deps)
}

func (w *world) subscriptions() SubscriptionService {
	return NewSubscriptionService(w.store.Profiles(), w.store.Tenants(), w.store.Organizers(), w.store.SubscriptionRepo(), w.settings(), 30, w.deps)
}

func (w *world) reconciler(n notify.Notifier) ReconciliationService {
	return w.reconcilerWith(w.subscriptions(), n)
}

func (w *world) reconcilerWith(subs SubscriptionService, n notify.Notifier) ReconciliationService {
	return NewReconciliationService(w.store.Profiles(), w.store.Tenants(), w.store.Organizers(), w.store.TransactionRepo(), subs, n, w.deps)
}

func (w *world) payments(g PaymentInitiator) PaymentService {
	return NewPaymentService(w.store.Tenants(), w.store.Organizers(), w.store.Locations(), w.store.Rentals(), w.store.TransactionRepo(), g, w.settings(), PaymentConfig{
		PublicBaseURL: "https://permitakaun.test/",
		PlanPrices: map[string]decimal.Decimal{
			"basic":   decimal.RequireFromString("29.90"),
			"premium": decimal.RequireFromString("49.90"),
		},
	}, w.deps)
}

// approveLink links the tenant to the organizer through the service
func (w *world) approveLink(t *testing.T, tenant *domain.Tenant, caller domain.Caller, org domain.Caller, code string) {
	t.Helper()
	ctx := context.Background()
	svc := w.links()
	resp, err := svc.RequestOrganizerLink(ctx, caller, tenant.ID, code)
	require.NoError(t, err)
	_, err = svc.ProcessTenantRequest(ctx, org, resp.Link.ID, "approve", nil)
	require.NoError(t, err)
}

// addRental assigns a location directly in the store
func (w *world) addRental(t *testing.T, tenant *domain.Tenant, loc *domain.Location, rate domain.RateType) *domain.TenantLocation {
	t.Helper()
	rental := &domain.TenantLocation{
		TenantID: tenant.ID, LocationID: loc.ID, OrganizerID: loc.OrganizerID,
		Status: domain.RentalStatusActive, RateType: rate, IsActive: true, CreatedAt: fixedNow,
	}
	ok, err := w.store.Rentals().InsertIfAbsent(context.Background(), rental)
	require.NoError(t, err)
	require.True(t, ok)
	return rental
}

// seedTransaction stores a ledger row directly
func (w *world) seedTransaction(t *testing.T, tx domain.Transaction) *domain.Transaction {
	t.Helper()
	if tx.Date.IsZero() {
		tx.Date = fixedNow
	}
	tx.CreatedAt, tx.UpdatedAt = fixedNow, fixedNow
	require.NoError(t, w.store.TransactionRepo().Create(context.Background(), &tx))
	return &tx
}

// fakeGateway records payment requests and returns sequential bill ids
type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.PaymentRequest
	sandbox  []bool
	err      error
}

func (g *fakeGateway) InitiatePayment(ctx context.Context, req *gateway.PaymentRequest, sandbox bool) (*gateway.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, *req)
	g.sandbox = append(g.sandbox, sandbox)
	id := "bill-" + string(rune('a'+len(g.requests)-1))
	provider := gateway.ProviderBillplz
	if !sandbox {
		provider = gateway.ProviderStripe
	}
	return &gateway.PaymentResult{ProviderID: id, RedirectURL: "https://pay.test/" + id, Provider: provider}, nil
}

// recordingNotifier captures sent notifications
type recordingNotifier struct {
	mu        sync.Mutex
	receipts  []notify.Receipt
	summaries []notify.Receipt
	err       error
}

func (n *recordingNotifier) SendReceipt(ctx context.Context, r notify.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return n.err
}

func (n *recordingNotifier) SendAdminSummary(ctx context.Context, r notify.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, r)
	return n.err
}

// failingSubscriptions fails every activation
type failingSubscriptions struct {
	SubscriptionService
	calls int
}

func (f *failingSubscriptions) ActivateUserSubscription(ctx context.Context, userID string, amount decimal.Decimal, paymentRef, planType string) (*domain.Subscription, error) {
	f.calls++
	return nil, domain.NewInternalError(errors.New("subscriptions table unavailable"))
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}
