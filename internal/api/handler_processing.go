package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/mw"
	"batchtrack-backend/internal/processing"
)

type setCansRequest struct {
	CanIDs []string `json:"can_ids"`
}

// CreateProcessing handles POST /api/lines/:line/processing.
func (h *Handler) CreateProcessing(c *gin.Context) {
	var req processing.CreateInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	req.ProductLine = c.Param("line")

	b, err := h.svc.Processing.Create(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// ListProcessing handles GET /api/lines/:line/processing.
func (h *Handler) ListProcessing(c *gin.Context) {
	var filter processing.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	batches, err := h.svc.Processing.List(c.Request.Context(), c.Param("line"), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

// GetProcessing handles GET /api/lines/:line/processing/:id.
func (h *Handler) GetProcessing(c *gin.Context) {
	b, err := h.svc.Processing.Get(c.Request.Context(), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// UpdateProcessingMetrics handles PATCH /api/lines/:line/processing/:id.
func (h *Handler) UpdateProcessingMetrics(c *gin.Context) {
	var req processing.MetricsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.svc.Processing.UpdateMetrics(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DeleteProcessing handles DELETE /api/lines/:line/processing/:id.
func (h *Handler) DeleteProcessing(c *gin.Context) {
	if err := h.svc.Processing.Delete(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetProcessingCans handles PUT /api/lines/:line/processing/:id/cans.
func (h *Handler) SetProcessingCans(c *gin.Context) {
	var req setCansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.svc.Processing.SetCans(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"), req.CanIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// SubmitProcessing handles POST /api/lines/:line/processing/:id/submit.
func (h *Handler) SubmitProcessing(c *gin.Context) {
	h.processingTransition(c, h.svc.Processing.Submit)
}

// ReopenProcessing handles POST /api/lines/:line/processing/:id/reopen.
func (h *Handler) ReopenProcessing(c *gin.Context) {
	h.processingTransition(c, h.svc.Processing.Reopen)
}

// CancelProcessing handles POST /api/lines/:line/processing/:id/cancel.
func (h *Handler) CancelProcessing(c *gin.Context) {
	h.processingTransition(c, h.svc.Processing.Cancel)
}

func (h *Handler) processingTransition(c *gin.Context, op func(context.Context, identity.Actor, string, string) (processing.Batch, error)) {
	b, err := op(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
