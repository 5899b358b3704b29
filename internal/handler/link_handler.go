package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/service"
	"github.com/webdevsha/permitakaun/pkg/middleware"
	"github.com/webdevsha/permitakaun/pkg/response"
)

// LinkHandler handles tenant-organizer link HTTP requests
type LinkHandler struct {
	linkService service.LinkService
}

// NewLinkHandler creates a new LinkHandler
func NewLinkHandler(linkService service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

// ValidateOrganizer resolves an organizer code
// GET /api/v1/organizers/validate?code=
func (h *LinkHandler) ValidateOrganizer(c *gin.Context) {
	var query dto.ValidateOrganizerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.linkService.ValidateOrganizerByCode(c.Request.Context(), query.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// RequestLink handles a tenant asking to join an organizer
// POST /api/v1/tenants/:id/links
func (h *LinkHandler) RequestLink(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	tenantID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.RequestLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.linkService.RequestOrganizerLink(c.Request.Context(), who, tenantID, req.OrganizerCode)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Permohonan telah dihantar kepada penganjur"
	if result.Resubmitted {
		message = "Permohonan telah dihantar semula kepada penganjur"
	}
	middleware.SetAuditResource(c, "link", "")
	c.JSON(http.StatusCreated, response.SuccessMessage(message, result))
}

// ListTenantLinks lists every organizer link of a tenant
// GET /api/v1/tenants/:id/links
func (h *LinkHandler) ListTenantLinks(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	tenantID, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.linkService.ListTenantOrganizers(c.Request.Context(), who, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// PendingRequests lists the pending queue visible to the caller
// GET /api/v1/links/pending?organizer_id=
func (h *LinkHandler) PendingRequests(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var query dto.PendingRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.linkService.GetPendingRequests(c.Request.Context(), who, query.OrganizerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// ProcessRequest approves or rejects a pending request
// POST /api/v1/links/:id/process
func (h *LinkHandler) ProcessRequest(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	linkID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.ProcessLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.linkService.ProcessTenantRequest(c.Request.Context(), who, linkID, req.Action, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// History returns the status trail of a link
// GET /api/v1/links/:id/history
func (h *LinkHandler) History(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	linkID, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.linkService.GetLinkHistory(c.Request.Context(), who, linkID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
