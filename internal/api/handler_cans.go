package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/mw"
)

// CreateCan handles POST /api/lines/:line/cans.
func (h *Handler) CreateCan(c *gin.Context) {
	var req can.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ProductLine = c.Param("line")

	created, err := h.svc.Cans.Create(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetCan handles GET /api/lines/:line/cans/:id.
func (h *Handler) GetCan(c *gin.Context) {
	found, err := h.svc.Cans.Get(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// UpdateCan handles PATCH /api/lines/:line/cans/:id.
func (h *Handler) UpdateCan(c *gin.Context) {
	var req can.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.svc.Cans.Update(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteCan handles DELETE /api/lines/:line/cans/:id.
func (h *Handler) DeleteCan(c *gin.Context) {
	if err := h.svc.Cans.Delete(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
