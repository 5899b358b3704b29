package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// MemoryStore is an in-memory implementation of every repository, used in tests
// and when the service runs without a database
type MemoryStore struct {
	mu            sync.RWMutex
	latency       time.Duration
	profiles      map[string]*domain.Profile
	tenants       map[int64]*domain.Tenant
	organizers    map[int64]*domain.Organizer
	locations     map[int64]*domain.Location
	links         map[int64]*domain.TenantOrganizerLink
	transitions   map[int64][]domain.LinkTransition
	rentals       map[int64]*domain.TenantLocation
	transactions  map[int64]*domain.Transaction
	subscriptions map[int64]*domain.Subscription
	settings      map[string]string
	seq           int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]*domain.Profile),
		tenants:       make(map[int64]*domain.Tenant),
		organizers:    make(map[int64]*domain.Organizer),
		locations:     make(map[int64]*domain.Location),
		links:         make(map[int64]*domain.TenantOrganizerLink),
		transitions:   make(map[int64][]domain.LinkTransition),
		rentals:       make(map[int64]*domain.TenantLocation),
		transactions:  make(map[int64]*domain.Transaction),
		subscriptions: make(map[int64]*domain.Subscription),
		settings:      make(map[string]string),
	}
}

// SetLatency delays every call, so callers' deadlines can be exercised (for testing)
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// wait honours the configured latency and the caller's context
func (s *MemoryStore) wait(ctx context.Context) error {
	s.mu.RLock()
	latency := s.latency
	s.mu.RUnlock()

	if latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

// Seeding helpers; IDs are assigned when zero

// AddProfile stores a profile
func (s *MemoryStore) AddProfile(p domain.Profile) *domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = &p
	out := p
	return &out
}

// AddTenant stores a tenant
func (s *MemoryStore) AddTenant(t domain.Tenant) *domain.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.tenants[t.ID] = &t
	out := t
	return &out
}

// AddOrganizer stores an organizer
func (s *MemoryStore) AddOrganizer(o domain.Organizer) *domain.Organizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.nextID()
	}
	s.organizers[o.ID] = &o
	out := o
	return &out
}

// AddLocation stores a location
func (s *MemoryStore) AddLocation(l domain.Location) *domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.nextID()
	}
	s.locations[l.ID] = &l
	out := l
	return &out
}

// SetSetting stores a system setting
func (s *MemoryStore) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// Links returns every stored link (for testing)
func (s *MemoryStore) Links() []domain.TenantOrganizerLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TenantOrganizerLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, *copyLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transactions returns every stored ledger row (for testing)
func (s *MemoryStore) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, *copyTransaction(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscriptions returns every stored subscription (for testing)
func (s *MemoryStore) Subscriptions() []domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Profiles returns the store as a ProfileRepository
func (s *MemoryStore) Profiles() ProfileRepository { return memoryProfiles{s} }

// Tenants returns the store as a TenantRepository
func (s *MemoryStore) Tenants() TenantRepository { return memoryTenants{s} }

// Organizers returns the store as an OrganizerRepository
func (s *MemoryStore) Organizers() OrganizerRepository { return memoryOrganizers{s} }

// LinkRepo returns the store as a LinkRepository
func (s *MemoryStore) LinkRepo() LinkRepository { return memoryLinks{s} }

// Locations returns the store as a LocationRepository
func (s *MemoryStore) Locations() LocationRepository { return memoryLocations{s} }

// Rentals returns the store as a RentalRepository
func (s *MemoryStore) Rentals() RentalRepository { return memoryRentals{s} }

// TransactionRepo returns the store as a TransactionRepository
func (s *MemoryStore) TransactionRepo() TransactionRepository { return memoryTransactions{s} }

// SubscriptionRepo returns the store as a SubscriptionRepository
func (s *MemoryStore) SubscriptionRepo() SubscriptionRepository { return memorySubscriptions{s} }

// Settings returns the store as a SettingsRepository
func (s *MemoryStore) Settings() SettingsRepository { return memorySettings{s} }

type memoryProfiles struct{ s *MemoryStore }

func (r memoryProfiles) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

type memoryTenants struct{ s *MemoryStore }

func (r memoryTenants) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (r memoryTenants) GetByProfileID(ctx context.Context, profileID string) (*domain.Tenant, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *domain.Tenant
	for _, t := range r.s.tenants {
		if t.ProfileID == profileID && t.DeletedAt == nil && (found == nil || t.ID < found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, nil
	}
	out := *found
	return &out, nil
}

func (r memoryTenants) SetAccountingStatus(ctx context.Context, id int64, status string) error {
	if err := r.s.wait(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tenants[id]; ok {
		t.AccountingStatus = status
	}
	return nil
}

type memoryOrganizers struct{ s *MemoryStore }

func (r memoryOrganizers) GetByID(ctx context.Context, id int64) (*domain.Organizer, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.organizers[id]
	if !ok {
		return nil, nil
	}
	out := *o
	return &out, nil
}

func (r memoryOrganizers) GetByProfileID(ctx context.Context, profileID string) (*domain.Organizer, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *domain.Organizer
	for _, o := range r.s.organizers {
		if o.ProfileID == profileID && (found == nil || o.ID < found.ID) {
			found = o
		}
	}
	if found == nil {
		return nil, nil
	}
	out := *found
	return &out, nil
}

func (r memoryOrganizers) GetActiveByCode(ctx context.Context, code string) (*domain.Organizer, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.organizers {
		if strings.EqualFold(o.OrganizerCode, code) && o.IsActive() {
			out := *o
			return &out, nil
		}
	}
	return nil, nil
}

func (r memoryOrganizers) SetAccountingStatus(ctx context.Context, id int64, status string) error {
	if err := r.s.wait(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.organizers[id]; ok {
		o.AccountingStatus = status
	}
	return nil
}

type memoryLinks struct{ s *MemoryStore }

func (r memoryLinks) RequestLink(ctx context.Context, tenantID, organizerID int64, actor string, now time.Time) (*domain.TenantOrganizerLink, RequestOutcome, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, l := range r.s.links {
		if l.TenantID != tenantID || l.OrganizerID != organizerID {
			continue
		}
		if l.Status != domain.LinkRejected {
			return copyLink(l), RequestExisting, nil
		}
		t, err := l.Resurrect(actor, now)
		if err != nil {
			return nil, 0, err
		}
		r.s.appendTransition(t)
		return copyLink(l), RequestResurrected, nil
	}

	link := domain.NewLinkRequest(tenantID, organizerID, now)
	link.ID = r.s.nextID()
	r.s.links[link.ID] = link
	r.s.appendTransition(&domain.LinkTransition{
		LinkID:         link.ID,
		ToStatus:       domain.LinkPending,
		ActorProfileID: actor,
		CreatedAt:      now,
	})
	return copyLink(link), RequestCreated, nil
}

// appendTransition must be called with the write lock held
func (s *MemoryStore) appendTransition(t *domain.LinkTransition) {
	t.ID = s.nextID()
	s.transitions[t.LinkID] = append(s.transitions[t.LinkID], *t)
}

func (r memoryLinks) GetByID(ctx context.Context, id int64) (*domain.TenantOrganizerLink, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.links[id]
	if !ok {
		return nil, nil
	}
	return copyLink(l), nil
}

func (r memoryLinks) UpdateStatus(ctx context.Context, link *domain.TenantOrganizerLink, from domain.LinkStatus, transition *domain.LinkTransition) error {
	if err := r.s.wait(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.links[link.ID]
	if !ok || stored.Status != from {
		return ErrStaleStatus
	}
	r.s.links[link.ID] = copyLink(link)
	r.s.appendTransition(transition)
	return nil
}

func (r memoryLinks) views(match func(l *domain.TenantOrganizerLink) bool) []domain.LinkView {
	var out []domain.LinkView
	for _, l := range r.s.links {
		if !match(l) {
			continue
		}
		t, ok := r.s.tenants[l.TenantID]
		if !ok || t.DeletedAt != nil {
			continue
		}
		o, ok := r.s.organizers[l.OrganizerID]
		if !ok {
			continue
		}
		out = append(out, domain.LinkView{
			Link: *copyLink(l),
			Tenant: domain.TenantPublic{
				ID:           t.ID,
				FullName:     t.FullName,
				BusinessName: t.BusinessName,
				PhoneNumber:  t.PhoneNumber,
				Email:        t.Email,
			},
			Organizer: domain.OrganizerPublic{ID: o.ID, Name: o.Name, OrganizerCode: o.OrganizerCode},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Link.RequestedAt.Equal(out[j].Link.RequestedAt) {
			return out[i].Link.ID > out[j].Link.ID
		}
		return out[i].Link.RequestedAt.After(out[j].Link.RequestedAt)
	})
	return out
}

func (r memoryLinks) ListPending(ctx context.Context, organizerID *int64) ([]domain.LinkView, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.views(func(l *domain.TenantOrganizerLink) bool {
		return l.Status == domain.LinkPending && (organizerID == nil || l.OrganizerID == *organizerID)
	}), nil
}

func (r memoryLinks) ListByTenant(ctx context.Context, tenantID int64) ([]domain.LinkView, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.views(func(l *domain.TenantOrganizerLink) bool { return l.TenantID == tenantID }), nil
}

func (r memoryLinks) ApprovedOrganizerIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []int64
	for _, l := range r.s.links {
		if l.TenantID == tenantID && l.Status.IsApproved() {
			ids = append(ids, l.OrganizerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memoryLinks) ListTransitions(ctx context.Context, linkID int64) ([]domain.LinkTransition, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	transitions := r.s.transitions[linkID]
	result := make([]domain.LinkTransition, len(transitions))
	copy(result, transitions)
	return result, nil
}

type memoryLocations struct{ s *MemoryStore }

func (r memoryLocations) GetByID(ctx context.Context, id int64) (*domain.Location, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.locations[id]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

func (r memoryLocations) list(match func(l *domain.Location) bool) []domain.Location {
	var out []domain.Location
	for _, l := range r.s.locations {
		if match(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r memoryLocations) ListActiveByOrganizers(ctx context.Context, organizerIDs []int64) ([]domain.Location, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	allowed := make(map[int64]bool, len(organizerIDs))
	for _, id := range organizerIDs {
		allowed[id] = true
	}
	return r.list(func(l *domain.Location) bool { return allowed[l.OrganizerID] && l.IsActive() }), nil
}

func (r memoryLocations) ListPublic(ctx context.Context, filter LocationFilter) ([]domain.Location, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.list(func(l *domain.Location) bool {
		o, ok := r.s.organizers[l.OrganizerID]
		if !ok || !o.IsActive() || !l.IsActive() {
			return false
		}
		if filter.OrganizerCode != "" && !strings.EqualFold(o.OrganizerCode, filter.OrganizerCode) {
			return false
		}
		return filter.Type == "" || l.Type == filter.Type
	}), nil
}

type memoryRentals struct{ s *MemoryStore }

func (r memoryRentals) GetByID(ctx context.Context, id int64) (*domain.TenantLocation, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tl, ok := r.s.rentals[id]
	if !ok {
		return nil, nil
	}
	out := *tl
	return &out, nil
}

func (r memoryRentals) ListActiveByTenant(ctx context.Context, tenantID int64) ([]domain.TenantLocation, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.TenantLocation
	for _, tl := range r.s.rentals {
		if tl.TenantID == tenantID && tl.IsActive {
			out = append(out, *tl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryRentals) InsertIfAbsent(ctx context.Context, rental *domain.TenantLocation) (bool, error) {
	if err := r.s.wait(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tl := range r.s.rentals {
		if tl.TenantID == rental.TenantID && tl.LocationID == rental.LocationID && tl.IsActive {
			return false, nil
		}
	}
	rental.ID = r.s.nextID()
	rental.IsActive = true
	stored := *rental
	r.s.rentals[rental.ID] = &stored
	return true, nil
}

type memoryTransactions struct{ s *MemoryStore }

func (r memoryTransactions) Create(ctx context.Context, tx *domain.Transaction) error {
	if err := r.s.wait(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx.ID = r.s.nextID()
	r.s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

func (r memoryTransactions) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(t), nil
}

func (r memoryTransactions) FindPrimaryByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *domain.Transaction
	for _, t := range r.s.transactions {
		if t.PaymentReference != reference || t.CounterpartOf != nil {
			continue
		}
		if best == nil ||
			t.OwnerKind.Priority() < best.OwnerKind.Priority() ||
			(t.OwnerKind == best.OwnerKind && t.ID < best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyTransaction(best), nil
}

func (r memoryTransactions) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, receiptURL string, now time.Time) (bool, error) {
	if err := r.s.wait(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if receiptURL != "" {
		t.ReceiptURL = receiptURL
	}
	t.UpdatedAt = now
	return true, nil
}

func (r memoryTransactions) CreateCounterpart(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if err := r.s.wait(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.CounterpartOf != nil && tx.CounterpartOf != nil && *t.CounterpartOf == *tx.CounterpartOf {
			return false, nil
		}
	}
	tx.ID = r.s.nextID()
	r.s.transactions[tx.ID] = copyTransaction(tx)
	return true, nil
}

type memorySubscriptions struct{ s *MemoryStore }

func (r memorySubscriptions) Create(ctx context.Context, sub *domain.Subscription) (bool, error) {
	if err := r.s.wait(ctx); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.subscriptions {
		if existing.PaymentReference == sub.PaymentReference {
			return false, nil
		}
	}
	sub.ID = r.s.nextID()
	stored := *sub
	r.s.subscriptions[sub.ID] = &stored
	return true, nil
}

func (r memorySubscriptions) LatestActive(ctx context.Context, kind domain.OwnerKind, ownerID int64, now time.Time) (*domain.Subscription, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *domain.Subscription
	for _, sub := range r.s.subscriptions {
		if sub.OwnerKind != kind || sub.OwnerID != ownerID || !sub.IsActiveAt(now) {
			continue
		}
		if best == nil || sub.EndDate.After(best.EndDate) {
			best = sub
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

type memorySettings struct{ s *MemoryStore }

func (r memorySettings) GetAll(ctx context.Context) (map[string]string, error) {
	if err := r.s.wait(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]string, len(r.s.settings))
	for k, v := range r.s.settings {
		out[k] = v
	}
	return out, nil
}

// copyLink creates a deep copy of a link
func copyLink(l *domain.TenantOrganizerLink) *domain.TenantOrganizerLink {
	if l == nil {
		return nil
	}
	copied := *l
	if l.ApprovedAt != nil {
		v := *l.ApprovedAt
		copied.ApprovedAt = &v
	}
	if l.RejectedAt != nil {
		v := *l.RejectedAt
		copied.RejectedAt = &v
	}
	if l.RejectionReason != nil {
		v := *l.RejectionReason
		copied.RejectionReason = &v
	}
	return &copied
}

// copyTransaction creates a deep copy of a ledger row
func copyTransaction(t *domain.Transaction) *domain.Transaction {
	if t == nil {
		return nil
	}
	copied := *t
	if t.CounterpartOf != nil {
		v := *t.CounterpartOf
		copied.CounterpartOf = &v
	}
	switch m := t.Metadata.(type) {
	case *domain.SubscriptionMetadata:
		v := *m
		copied.Metadata = &v
	case *domain.PaymentMetadata:
		v := *m
		copied.Metadata = &v
	}
	return &copied
}
