package service

import (
	"context"
	"errors"
	"strings"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// linkService implements LinkService
type linkService struct {
	parties
	links repository.LinkRepository
}

// NewLinkService creates a new LinkService
func NewLinkService(
	tenants repository.TenantRepository,
	organizers repository.OrganizerRepository,
	links repository.LinkRepository,
	deps Deps,
) LinkService {
	deps = deps.withDefaults()
	return &linkService{
		parties: parties{tenants: tenants, organizers: organizers, deps: deps},
		links:   links,
	}
}

func (s *linkService) activeOrganizerByCode(ctx context.Context, code string) (*domain.Organizer, error) {
	normalized, err := domain.NormalizeOrganizerCode(code)
	if err != nil {
		return nil, err
	}
	org, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.Organizer, error) {
		return s.organizers.GetActiveByCode(ctx, normalized)
	})
	return org, mapError(ctx, s.deps.Logger, "organizer.get_by_code", err)
}

// ValidateOrganizerByCode resolves an active organizer by its public code
func (s *linkService) ValidateOrganizerByCode(ctx context.Context, code string) (resp *dto.OrganizerValidationResponse, err error) {
	ctx, end := startSpan(ctx, "link.validate_organizer")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	org, err := s.activeOrganizerByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return &dto.OrganizerValidationResponse{Exists: false}, nil
	}
	return &dto.OrganizerValidationResponse{
		Exists: true,
		ID:     org.ID,
		Name:   org.Name,
		Email:  domain.MaskEmail(org.Email),
		Status: org.Status,
	}, nil
}

// RequestOrganizerLink creates or resubmits the caller's request to join an organizer
func (s *linkService) RequestOrganizerLink(ctx context.Context, caller domain.Caller, tenantID int64, code string) (resp *dto.RequestLinkResponse, err error) {
	ctx, end := startSpan(ctx, "link.request")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	tenant, err := s.ownedTenant(ctx, caller, tenantID)
	if err != nil {
		return nil, err
	}

	org, err := s.activeOrganizerByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.NewValidationError(domain.MsgInvalidOrganizerCode)
	}

	type requested struct {
		link    *domain.TenantOrganizerLink
		outcome repository.RequestOutcome
	}
	res, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (requested, error) {
		link, outcome, err := s.links.RequestLink(ctx, tenant.ID, org.ID, caller.ProfileID, s.deps.Clock())
		return requested{link: link, outcome: outcome}, err
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "link.request", err)
	}

	switch res.outcome {
	case repository.RequestExisting:
		if res.link.Status.IsApproved() {
			return nil, domain.NewConflictError(domain.MsgLinkApproved, string(res.link.Status))
		}
		return nil, domain.NewConflictError(domain.MsgLinkPending, string(res.link.Status))
	case repository.RequestResurrected:
		s.deps.Logger.InfoContext(ctx, "link request resubmitted",
			zap.Int64("link_id", res.link.ID),
			zap.Int64("tenant_id", tenant.ID),
			zap.Int64("organizer_id", org.ID),
		)
	default:
		s.deps.Logger.InfoContext(ctx, "link requested",
			zap.Int64("link_id", res.link.ID),
			zap.Int64("tenant_id", tenant.ID),
			zap.Int64("organizer_id", org.ID),
		)
	}
	linkTransitions.Inc(ctx, telemetry.LinkStatusAttr(string(domain.LinkPending)))

	return &dto.RequestLinkResponse{
		Link:        dto.FromLink(res.link),
		Resubmitted: res.outcome == repository.RequestResurrected,
	}, nil
}

// GetPendingRequests lists pending requests visible to the caller
func (s *linkService) GetPendingRequests(ctx context.Context, caller domain.Caller, organizerID *int64) (resp []dto.LinkResponse, err error) {
	ctx, end := startSpan(ctx, "link.list_pending")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	filter := organizerID
	switch {
	case caller.IsBackOffice():
	case caller.Role == domain.RoleOrganizer:
		org, err := s.organizerOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if org == nil {
			return nil, domain.NewForbiddenError()
		}
		own := org.ID
		filter = &own
	default:
		return nil, domain.NewForbiddenError()
	}

	views, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.LinkView, error) {
		return s.links.ListPending(ctx, filter)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "link.list_pending", err)
	}

	now := s.deps.Clock()
	out := make([]dto.LinkResponse, 0, len(views))
	for i := range views {
		out = append(out, *dto.FromLinkView(&views[i], now))
	}
	return out, nil
}

// ProcessTenantRequest approves or rejects a pending request
func (s *linkService) ProcessTenantRequest(ctx context.Context, caller domain.Caller, linkID int64, action string, reason *string) (resp *dto.LinkResponse, err error) {
	ctx, end := startSpan(ctx, "link.process")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	act, err := domain.ParseLinkAction(action)
	if err != nil {
		return nil, err
	}

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOrganizerSide(ctx, caller, link); err != nil {
		return nil, err
	}

	if link.Status != domain.LinkPending {
		return nil, domain.NewConflictError(domain.MsgLinkNotPending, string(link.Status))
	}

	from := link.Status
	now := s.deps.Clock()
	var transition *domain.LinkTransition
	if act == domain.ActionApprove {
		transition, err = link.Approve(caller.ProfileID, now)
	} else {
		transition, err = link.Reject(caller.ProfileID, trimReason(reason), now)
	}
	if err != nil {
		return nil, domain.NewConflictError(domain.MsgLinkNotPending, string(from))
	}

	err = boundedErr(ctx, s.deps.Timeouts.Database, func(ctx context.Context) error {
		return s.links.UpdateStatus(ctx, link, from, transition)
	})
	if errors.Is(err, repository.ErrStaleStatus) {
		current, getErr := s.getLink(ctx, linkID)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, domain.NewNotFoundError(domain.MsgLinkNotFound)
		}
		return nil, domain.NewConflictError(domain.MsgLinkNotPending, string(current.Status))
	}
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "link.update_status", err)
	}

	linkTransitions.Inc(ctx, telemetry.LinkStatusAttr(string(link.Status)))
	s.deps.Logger.InfoContext(ctx, "link request processed",
		zap.Int64("link_id", link.ID),
		zap.String("status", string(link.Status)),
		zap.String("actor", caller.ProfileID),
	)
	return dto.FromLink(link), nil
}

// ListTenantOrganizers lists every link of a tenant
func (s *linkService) ListTenantOrganizers(ctx context.Context, caller domain.Caller, tenantID int64) (resp []dto.LinkResponse, err error) {
	ctx, end := startSpan(ctx, "link.list_by_tenant")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	if !caller.IsBackOffice() {
		if _, err := s.ownedTenant(ctx, caller, tenantID); err != nil {
			return nil, err
		}
	}

	views, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.LinkView, error) {
		return s.links.ListByTenant(ctx, tenantID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "link.list_by_tenant", err)
	}

	now := s.deps.Clock()
	out := make([]dto.LinkResponse, 0, len(views))
	for i := range views {
		out = append(out, *dto.FromLinkView(&views[i], now))
	}
	return out, nil
}

// GetLinkHistory returns the status trail of a link
func (s *linkService) GetLinkHistory(ctx context.Context, caller domain.Caller, linkID int64) (resp []dto.LinkTransitionResponse, err error) {
	ctx, end := startSpan(ctx, "link.history")
	defer func() { finish(ctx, end, serviceFailures, err) }()

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !caller.IsBackOffice() {
		tenant, err := s.tenantOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if tenant == nil || link == nil || tenant.ID != link.TenantID {
			if err := s.authorizeOrganizerSide(ctx, caller, link); err != nil {
				return nil, err
			}
		}
	} else if link == nil {
		return nil, domain.NewNotFoundError(domain.MsgLinkNotFound)
	}

	transitions, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) ([]domain.LinkTransition, error) {
		return s.links.ListTransitions(ctx, linkID)
	})
	if err != nil {
		return nil, mapError(ctx, s.deps.Logger, "link.list_transitions", err)
	}

	out := make([]dto.LinkTransitionResponse, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, dto.LinkTransitionResponse{
			FromStatus:     t.FromStatus,
			ToStatus:       t.ToStatus,
			ActorProfileID: t.ActorProfileID,
			Reason:         t.Reason,
			CreatedAt:      t.CreatedAt,
		})
	}
	return out, nil
}

func (s *linkService) getLink(ctx context.Context, id int64) (*domain.TenantOrganizerLink, error) {
	link, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (*domain.TenantOrganizerLink, error) {
		return s.links.GetByID(ctx, id)
	})
	return link, mapError(ctx, s.deps.Logger, "link.get", err)
}

// authorizeOrganizerSide allows admins and the link's organizer. Non-admins get the
// same denial whether or not the link exists.
func (s *linkService) authorizeOrganizerSide(ctx context.Context, caller domain.Caller, link *domain.TenantOrganizerLink) error {
	if caller.IsAdmin() {
		if link == nil {
			return domain.NewNotFoundError(domain.MsgLinkNotFound)
		}
		return nil
	}
	if caller.Role != domain.RoleOrganizer || link == nil {
		return domain.NewForbiddenError()
	}
	org, err := s.organizerOf(ctx, caller)
	if err != nil {
		return err
	}
	if org == nil || org.ID != link.OrganizerID {
		return domain.NewForbiddenError()
	}
	return nil
}

func trimReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
