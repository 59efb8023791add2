package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/eligibility"
)

// ListEligible handles GET /api/eligibility/:stage?line=.
func (h *Handler) ListEligible(c *gin.Context) {
	stage, err := eligibility.ParseStage(c.Param("stage"))
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.svc.Eligibility.FindEligible(c.Request.Context(), stage, c.Query("line"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// DailyReport handles GET /api/reports/daily?date=YYYY-MM-DD.
func (h *Handler) DailyReport(c *gin.Context) {
	rep, err := h.svc.Reports.DailyReport(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
