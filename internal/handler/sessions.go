package handler

import (
	"net/http"
	"strconv"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SessionsHandler struct{ svc service.SessionService }

func NewSessionsHandler(svc service.SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// Open godoc
// @Summary Opens the cash session
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening value"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sessions [post]
func (h *SessionsHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	initial, err := money(req.InitialValue)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, _ := actor(c)
	cs, err := h.svc.OpenSession(c.Request.Context(), userID, initial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.SessionToDTO(cs))
}

// Active godoc
// @Summary Returns the open cash session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/sessions/active [get]
func (h *SessionsHandler) Active(c *gin.Context) {
	cs, err := h.svc.GetActiveSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToDTO(cs))
}

// Get godoc
// @Summary Returns a cash session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/sessions/{id} [get]
func (h *SessionsHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cs, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToDTO(cs))
}

// History returns a paginated list of sessions, newest first.
func (h *SessionsHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	resp, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Closes the cash session and freezes its final value
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.FinalSnapshot
// @Failure 409 {object} apierror.APIError
// @Router /v1/sessions/{id}/close [post]
func (h *SessionsHandler) Close(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := actor(c)
	snap, err := h.svc.CloseSession(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Reopen godoc
// @Summary Reopens a closed session (supervisor or admin)
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/sessions/{id}/reopen [post]
func (h *SessionsHandler) Reopen(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, role := actor(c)
	cs, err := h.svc.ReopenSession(c.Request.Context(), id, userID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToDTO(cs))
}

// CorrectInitialValue godoc
// @Summary Corrects the opening value of an open session (supervisor or admin)
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CorrectInitialValueRequest true "New opening value"
// @Success 200 {object} dto.SessionResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/sessions/{id}/initial-value [patch]
func (h *SessionsHandler) CorrectInitialValue(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CorrectInitialValueRequest
	if !bindAndValidate(c, &req) {
		return
	}
	value, err := money(req.InitialValue)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, role := actor(c)
	cs, err := h.svc.CorrectInitialValue(c.Request.Context(), id, value, userID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.SessionToDTO(cs))
}

// RecordTransaction godoc
// @Summary Records a monetized operation in the session
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.RecordTransactionRequest true "Transaction"
// @Success 201 {object} dto.TransactionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sessions/{id}/transactions [post]
func (h *SessionsHandler) RecordTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID, _ := actor(c)
	t, err := h.svc.RecordTransaction(c.Request.Context(), id, dto.RecordTransaction{
		Type:          req.Type,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		ReferenceID:   req.ReferenceID,
		Metadata:      req.Metadata,
		Actor:         userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.TransactionToDTO(t))
}

// ListTransactions returns the ledger of a session in insertion order.
func (h *SessionsHandler) ListTransactions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	txs, err := h.svc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.TransactionResponse, len(txs))
	for i := range txs {
		out[i] = service.TransactionToDTO(&txs[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Reverse godoc
// @Summary Reverses a transaction with a compensating row (supervisor or admin)
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param txid path string true "Transaction ID"
// @Param body body dto.ReverseTransactionRequest true "Reason"
// @Success 201 {object} dto.TransactionResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/sessions/{id}/transactions/{txid}/reverse [post]
func (h *SessionsHandler) Reverse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	txID, ok := paramID(c, "txid")
	if !ok {
		return
	}
	var req dto.ReverseTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID, role := actor(c)
	t, err := h.svc.ReverseTransaction(c.Request.Context(), id, txID, userID, role, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.TransactionToDTO(t))
}

// Totals godoc
// @Summary Returns the running totals and balance of a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.TotalsResponse
// @Router /v1/sessions/{id}/totals [get]
func (h *SessionsHandler) Totals(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetTotals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Breakdown returns signed sums by payment method and by type.
func (h *SessionsHandler) Breakdown(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetBreakdown(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Audit returns every attempted operation on a session, rejected ones included.
func (h *SessionsHandler) Audit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entries, err := h.svc.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = dto.AuditEntryResponse{
			Action:     string(e.Action),
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Actor:      e.Actor,
			Accepted:   e.Accepted,
			Reason:     e.Reason,
			CreatedAt:  e.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// money converts a request amount, rejecting more than two decimal places.
func money(d decimal.Decimal) (model.Money, error) {
	return model.MoneyFromDecimal(d)
}
