package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
)

func locationIDs(locs []domain.Location) []int64 {
	ids := make([]int64, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestAvailableLocations_EndToEnd(t *testing.T) {
	w := newWorld(t)
	links := w.links()
	rentals := w.rentals()
	ctx := context.Background()

	// nothing is visible before the organizer approves
	avail, err := rentals.GetAvailableLocationsForTenant(ctx, w.tenantCaller, w.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, avail)

	req, err := links.RequestOrganizerLink(ctx, w.tenantCaller, w.tenant.ID, "ORG002")
	require.NoError(t, err)

	avail, err = rentals.GetAvailableLocationsForTenant(ctx, w.tenantCaller, w.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, avail, "pending link grants nothing")

	_, err = links.ProcessTenantRequest(ctx, w.orgCaller, req.Link.ID, "approve", nil)
	require.NoError(t, err)

	w.addRental(t, w.tenant, w.daily, domain.RateKhemah)
	w.store.AddLocation(domain.Location{
		OrganizerID: w.organizer.ID, Name: "Tapak Ditutup", Type: domain.LocationDaily,
		Status: domain.LocationStatusInactive,
	})

	avail, err = rentals.GetAvailableLocationsForTenant(ctx, w.tenantCaller, w.tenant.ID)
	require.NoError(t, err)
	ids := locationIDs(avail)
	assert.ElementsMatch(t, []int64{w.monthly.ID, w.market.ID}, ids)
	assert.NotContains(t, ids, w.daily.ID, "already rented")
	assert.NotContains(t, ids, w.foreign.ID, "organizer not linked")
}

func TestAvailableLocations_Authorization(t *testing.T) {
	w := newWorld(t)
	w.approveLink(t, w.tenant, w.tenantCaller, w.orgCaller, "ORG002")
	w.approveLink(t, w.tenant, w.tenantCaller, w.otherOrg, "ORG001")
	rentals := w.rentals()
	ctx := context.Background()

	t.Run("other tenant", func(t *testing.T) {
		_, err := rentals.GetAvailableLocationsForTenant(ctx, w.otherTenant, w.tenant.ID)
		requireKind(t, err, domain.KindAuthorization)
	})

	t.Run("staff sees every linked organizer", func(t *testing.T) {
		avail, err := rentals.GetAvailableLocationsForTenant(ctx, w.staff, w.tenant.ID)
		require.NoError(t, err)
		assert.Len(t, avail, 4)
	})

	t.Run("organizer sees only its own locations", func(t *testing.T) {
		avail, err := rentals.GetAvailableLocationsForTenant(ctx, w.otherOrg, w.tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{w.foreign.ID}, locationIDs(avail))
	})

	t.Run("admin on missing tenant", func(t *testing.T) {
		_, err := rentals.GetAvailableLocationsForTenant(ctx, w.admin, 9999)
		requireKind(t, err, domain.KindNotFound)
	})
}

func TestAddTenantLocations_PartialSuccess(t *testing.T) {
	w := newWorld(t)
	w.approveLink(t, w.tenant, w.tenantCaller, w.orgCaller, "ORG002")
	w.addRental(t, w.tenant, w.market, domain.RateKhemah)

	resp, err := w.rentals().AddTenantLocations(context.Background(), w.tenantCaller, w.tenant.ID, &dto.AddLocationsRequest{
		LocationIDs: []int64{w.daily.ID, w.monthly.ID, w.market.ID},
		StallNumber: "A12",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Inserted)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Details, 3)
	assert.True(t, resp.Details[0].Inserted)
	assert.NotZero(t, resp.Details[0].RentalID)
	assert.True(t, resp.Details[1].Inserted)
	assert.Equal(t, dto.LocationAssignment{LocationID: w.market.ID, Reason: dto.SkipAlreadyRented}, resp.Details[2])

	rented, err := w.store.Rentals().ListActiveByTenant(context.Background(), w.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, rented, 3)
	for _, r := range rented {
		switch r.LocationID {
		case w.daily.ID:
			assert.Equal(t, domain.RateKhemah, r.RateType)
			assert.Equal(t, "A12", r.StallNumber)
		case w.monthly.ID:
			assert.Equal(t, domain.RateMonthlyKhemah, r.RateType)
		}
	}
}

func TestAddTenantLocations_SkipReasons(t *testing.T) {
	w := newWorld(t)
	w.approveLink(t, w.tenant, w.tenantCaller, w.orgCaller, "ORG002")
	closed := w.store.AddLocation(domain.Location{
		OrganizerID: w.organizer.ID, Name: "Tapak Ditutup", Type: domain.LocationDaily,
		RateKhemah: decimal.NewFromInt(10), Status: domain.LocationStatusInactive,
	})

	tests := []struct {
		name     string
		location int64
		rateType string
		reason   string
	}{
		{name: "unknown location", location: 9999, reason: dto.SkipNotFound},
		{name: "inactive location", location: closed.ID, reason: dto.SkipNotFound},
		{name: "organizer not linked", location: w.foreign.ID, reason: dto.SkipNotLinked},
		{name: "monthly rate on daily location", location: w.daily.ID, rateType: string(domain.RateMonthlyCBS), reason: dto.SkipInvalidRate},
		{name: "rate not set", location: w.market.ID, rateType: string(domain.RateCBS), reason: dto.SkipInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := w.rentals().AddTenantLocations(context.Background(), w.tenantCaller, w.tenant.ID, &dto.AddLocationsRequest{
				LocationIDs: []int64{tt.location},
				RateType:    tt.rateType,
			})
			require.NoError(t, err)
			assert.Zero(t, resp.Inserted)
			assert.Equal(t, 1, resp.Skipped)
			assert.Equal(t, tt.reason, resp.Details[0].Reason)
		})
	}
}

func TestAddTenantLocations_OrganizerScope(t *testing.T) {
	w := newWorld(t)
	w.approveLink(t, w.tenant, w.tenantCaller, w.orgCaller, "ORG002")
	w.approveLink(t, w.tenant, w.tenantCaller, w.otherOrg, "ORG001")

	resp, err := w.rentals().AddTenantLocations(context.Background(), w.orgCaller, w.tenant.ID, &dto.AddLocationsRequest{
		LocationIDs: []int64{w.daily.ID, w.foreign.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Inserted)
	assert.Equal(t, dto.SkipNotLinked, resp.Details[1].Reason)
}

func TestAddTenantLocations_Rejections(t *testing.T) {
	w := newWorld(t)
	svc := w.rentals()
	ctx := context.Background()

	_, err := svc.AddTenantLocations(ctx, w.tenantCaller, w.tenant.ID, &dto.AddLocationsRequest{LocationIDs: []int64{0}})
	requireKind(t, err, domain.KindValidation)

	_, err = svc.AddTenantLocations(ctx, w.otherTenant, w.tenant.ID, &dto.AddLocationsRequest{LocationIDs: []int64{w.daily.ID}})
	requireKind(t, err, domain.KindAuthorization)
}
