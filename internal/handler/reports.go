package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type ReportsHandler struct{ rdb *redis.Client }

// NewReportsHandler serves the projections built by the worker pool. rdb is
// nil when events are disabled.
func NewReportsHandler(rdb *redis.Client) *ReportsHandler { return &ReportsHandler{rdb: rdb} }

// Daily godoc
// @Summary Returns the per-day summary projected from session events
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} dto.DailySummary
// @Failure 503 {object} apierror.APIError
// @Router /v1/reports/daily/{date} [get]
func (h *ReportsHandler) Daily(c *gin.Context) {
	day := c.Param("date")
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		respondError(c, fmt.Errorf("%w: date %q must be YYYY-MM-DD", apierror.ErrInvalidInput, day))
		return
	}
	if h.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, &apierror.APIError{Detail: "event projections are disabled", Code: apierror.CodeUnavailable})
		return
	}
	summary, err := worker.ReadDailySummary(c.Request.Context(), h.rdb, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
