package service

import (
	"context"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/repository"
)

// parties resolves tenants and organizers for authorization checks
type parties struct {
	tenants    repository.TenantRepository
	organizers repository.OrganizerRepository
	deps       Deps
}

func (p parties) tenant(ctx context.Context, id int64) (*domain.Tenant, error) {
	t, err := bounded(ctx, p.deps.Timeouts.Database, func(ctx context.Context) (*domain.Tenant, error) {
		return p.tenants.GetByID(ctx, id)
	})
	return t, mapError(ctx, p.deps.Logger, "tenant.get", err)
}

func (p parties) tenantOf(ctx context.Context, caller domain.Caller) (*domain.Tenant, error) {
	t, err := bounded(ctx, p.deps.Timeouts.Database, func(ctx context.Context) (*domain.Tenant, error) {
		return p.tenants.GetByProfileID(ctx, caller.ProfileID)
	})
	return t, mapError(ctx, p.deps.Logger, "tenant.get_by_profile", err)
}

func (p parties) organizerOf(ctx context.Context, caller domain.Caller) (*domain.Organizer, error) {
	o, err := bounded(ctx, p.deps.Timeouts.Database, func(ctx context.Context) (*domain.Organizer, error) {
		return p.organizers.GetByProfileID(ctx, caller.ProfileID)
	})
	return o, mapError(ctx, p.deps.Logger, "organizer.get_by_profile", err)
}

// ownedTenant returns the tenant when the caller owns it; missing and foreign tenants
// get the same denial
func (p parties) ownedTenant(ctx context.Context, caller domain.Caller, tenantID int64) (*domain.Tenant, error) {
	t, err := p.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t == nil || caller.ProfileID == "" || t.ProfileID != caller.ProfileID {
		return nil, domain.NewForbiddenError()
	}
	return t, nil
}

// tenantAccess describes who may act on a tenant's rentals
type tenantAccess struct {
	tenant *domain.Tenant
	// organizerID is set when the caller is an organizer, restricting it to its own locations
	organizerID int64
}

// tenantForRentals authorizes the owning tenant, back office and organizers
func (p parties) tenantForRentals(ctx context.Context, caller domain.Caller, tenantID int64) (*tenantAccess, error) {
	t, err := p.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.IsBackOffice():
		if t == nil {
			return nil, domain.NewNotFoundError(domain.MsgTenantNotFound)
		}
		return &tenantAccess{tenant: t}, nil
	case caller.Role == domain.RoleOrganizer:
		org, err := p.organizerOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if org == nil || t == nil {
			return nil, domain.NewForbiddenError()
		}
		return &tenantAccess{tenant: t, organizerID: org.ID}, nil
	default:
		if t == nil || caller.ProfileID == "" || t.ProfileID != caller.ProfileID {
			return nil, domain.NewForbiddenError()
		}
		return &tenantAccess{tenant: t}, nil
	}
}
