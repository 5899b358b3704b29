package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/service"
	"github.com/webdevsha/permitakaun/pkg/response"
)

// RentalHandler handles location listing and stall assignment HTTP requests
type RentalHandler struct {
	rentalService   service.RentalService
	locationService service.LocationService
}

// NewRentalHandler creates a new RentalHandler
func NewRentalHandler(rentalService service.RentalService, locationService service.LocationService) *RentalHandler {
	return &RentalHandler{rentalService: rentalService, locationService: locationService}
}

// AvailableLocations lists locations the tenant may still rent
// GET /api/v1/tenants/:id/available-locations
func (h *RentalHandler) AvailableLocations(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	tenantID, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.rentalService.GetAvailableLocationsForTenant(c.Request.Context(), who, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// AddLocations assigns stalls to a tenant
// POST /api/v1/tenants/:id/locations
func (h *RentalHandler) AddLocations(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	tenantID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.AddLocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.rentalService.AddTenantLocations(c.Request.Context(), who, tenantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// PublicLocations lists active locations without login
// GET /api/v1/public/locations?organizer_code=&type=
func (h *RentalHandler) PublicLocations(c *gin.Context) {
	var query dto.PublicLocationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.locationService.ListPublicLocations(c.Request.Context(), &query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
