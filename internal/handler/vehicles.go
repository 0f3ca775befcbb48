package handler

import (
	"fmt"
	"net/http"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VehiclesHandler serves the parking flow. Entries and exits are charged to
// the session currently open.
type VehiclesHandler struct {
	parking  service.ParkingService
	sessions service.SessionService
}

func NewVehiclesHandler(parking service.ParkingService, sessions service.SessionService) *VehiclesHandler {
	return &VehiclesHandler{parking: parking, sessions: sessions}
}

// activeSessionID resolves the open session, writing the error if there is none.
func (h *VehiclesHandler) activeSessionID(c *gin.Context) (uuid.UUID, bool) {
	cs, err := h.sessions.GetActiveSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	return cs.ID, true
}

// Enter godoc
// @Summary Registers a vehicle entry in the open session
// @Tags vehicles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RegisterEntryRequest true "Vehicle"
// @Success 201 {object} dto.VehicleResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/vehicles [post]
func (h *VehiclesHandler) Enter(c *gin.Context) {
	var req dto.RegisterEntryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sessionID, ok := h.activeSessionID(c)
	if !ok {
		return
	}
	userID, _ := actor(c)
	resp, err := h.parking.RegisterEntry(c.Request.Context(), sessionID, req, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListInside returns the vehicles currently parked, optionally by ?category=.
func (h *VehiclesHandler) ListInside(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}
	entries, err := h.parking.ListInside(c.Request.Context(), category)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.VehicleResponse, len(entries))
	for i := range entries {
		out[i] = service.VehicleToDTO(&entries[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Quote godoc
// @Summary Previews the exit fee if the vehicle left now
// @Tags vehicles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 200 {object} dto.FeeResponse
// @Router /v1/vehicles/{id}/quote [get]
func (h *VehiclesHandler) Quote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.parking.QuoteExit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Exit godoc
// @Summary Registers a vehicle exit and charges the fee
// @Tags vehicles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param body body dto.RegisterExitRequest false "Discount and payment method"
// @Success 200 {object} dto.ExitReceipt
// @Failure 409 {object} apierror.APIError
// @Router /v1/vehicles/{id}/exit [post]
func (h *VehiclesHandler) Exit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterExitRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	sessionID, ok := h.activeSessionID(c)
	if !ok {
		return
	}
	userID, _ := actor(c)
	receipt, err := h.parking.RegisterExit(c.Request.Context(), sessionID, id, req, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Delete soft-deletes an entry registered by mistake (supervisor or admin).
func (h *VehiclesHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, role := actor(c)
	if err := h.parking.DeleteEntry(c.Request.Context(), id, userID, role); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Capacity returns occupancy for every category, or one with /:category.
func (h *VehiclesHandler) Capacity(c *gin.Context) {
	raw := c.Param("category")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"data": h.parking.GetAllCapacity()})
		return
	}
	category, ok := model.ParseVehicleCategory(raw)
	if !ok {
		respondError(c, fmt.Errorf("%w: unknown vehicle category %q", apierror.ErrInvalidInput, raw))
		return
	}
	c.JSON(http.StatusOK, h.parking.GetCapacity(category))
}

func categoryQuery(c *gin.Context) (*model.VehicleCategory, bool) {
	raw := c.Query("category")
	if raw == "" {
		return nil, true
	}
	category, ok := model.ParseVehicleCategory(raw)
	if !ok {
		respondError(c, fmt.Errorf("%w: unknown vehicle category %q", apierror.ErrInvalidInput, raw))
		return nil, false
	}
	return &category, true
}
