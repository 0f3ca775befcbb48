package handler

import (
	"fmt"
	"net/http"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct{ svc service.BillingService }

func NewBillingHandler(svc service.BillingService) *BillingHandler { return &BillingHandler{svc: svc} }

// CreateRule godoc
// @Summary Creates a billing rule, optionally activating it
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateBillingRuleRequest true "Rule"
// @Success 201 {object} dto.BillingRuleResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/billing-rules [post]
func (h *BillingHandler) CreateRule(c *gin.Context) {
	var req dto.CreateBillingRuleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rule, err := h.svc.CreateRule(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.BillingRuleToDTO(rule))
}

// ListRules returns every rule, optionally filtered by ?category=.
func (h *BillingHandler) ListRules(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}
	rules, err := h.svc.ListRules(c.Request.Context(), category)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.BillingRuleResponse, len(rules))
	for i := range rules {
		out[i] = service.BillingRuleToDTO(&rules[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// ActivateRule godoc
// @Summary Makes a rule the active one of its category
// @Tags billing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Rule ID"
// @Success 200 {object} dto.BillingRuleResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/billing-rules/{id}/activate [post]
func (h *BillingHandler) ActivateRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rule, err := h.svc.ActivateRule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.BillingRuleToDTO(rule))
}

// ComputeFee godoc
// @Summary Computes the fee for a stay with the active rule
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ComputeFeeRequest true "Stay"
// @Success 200 {object} dto.FeeResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/fees/compute [post]
func (h *BillingHandler) ComputeFee(c *gin.Context) {
	var req dto.ComputeFeeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	category, ok := model.ParseVehicleCategory(req.Category)
	if !ok {
		respondError(c, fmt.Errorf("%w: unknown vehicle category %q", apierror.ErrInvalidInput, req.Category))
		return
	}
	resp, err := h.svc.ComputeFee(c.Request.Context(), req.EntryTime, req.ExitTime, category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
