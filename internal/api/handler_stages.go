package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/labeling"
	"batchtrack-backend/internal/mw"
	"batchtrack-backend/internal/packaging"
)

// CreatePackaging handles POST /api/lines/:line/packaging.
func (h *Handler) CreatePackaging(c *gin.Context) {
	var req packaging.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ProductLine = c.Param("line")

	b, err := h.svc.Packaging.Create(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// ListPackaging handles GET /api/lines/:line/packaging.
func (h *Handler) ListPackaging(c *gin.Context) {
	var filter packaging.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	batches, err := h.svc.Packaging.List(c.Request.Context(), c.Param("line"), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

// GetPackaging handles GET /api/lines/:line/packaging/:id.
func (h *Handler) GetPackaging(c *gin.Context) {
	b, err := h.svc.Packaging.Get(c.Request.Context(), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// UpdatePackaging handles PATCH /api/lines/:line/packaging/:id.
func (h *Handler) UpdatePackaging(c *gin.Context) {
	var req packaging.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.svc.Packaging.Update(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ReopenPackaging handles POST /api/lines/:line/packaging/:id/reopen.
func (h *Handler) ReopenPackaging(c *gin.Context) {
	b, err := h.svc.Packaging.Reopen(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DeletePackaging handles DELETE /api/lines/:line/packaging/:id.
func (h *Handler) DeletePackaging(c *gin.Context) {
	if err := h.svc.Packaging.Delete(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateLabeling handles POST /api/lines/:line/labeling. An existing batch
// for the same packaging batch is returned with 200.
func (h *Handler) CreateLabeling(c *gin.Context) {
	var req labeling.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ProductLine = c.Param("line")

	b, created, err := h.svc.Labeling.Create(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, b)
}

// ListLabeling handles GET /api/lines/:line/labeling.
func (h *Handler) ListLabeling(c *gin.Context) {
	var filter labeling.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	batches, err := h.svc.Labeling.List(c.Request.Context(), c.Param("line"), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

// GetLabeling handles GET /api/lines/:line/labeling/:id.
func (h *Handler) GetLabeling(c *gin.Context) {
	b, err := h.svc.Labeling.Get(c.Request.Context(), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// UpdateLabeling handles PATCH /api/lines/:line/labeling/:id.
func (h *Handler) UpdateLabeling(c *gin.Context) {
	var req labeling.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.svc.Labeling.Update(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ReopenLabeling handles POST /api/lines/:line/labeling/:id/reopen.
func (h *Handler) ReopenLabeling(c *gin.Context) {
	b, err := h.svc.Labeling.Reopen(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DeleteLabeling handles DELETE /api/lines/:line/labeling/:id.
func (h *Handler) DeleteLabeling(c *gin.Context) {
	if err := h.svc.Labeling.Delete(c.Request.Context(), mw.Actor(c), c.Param("line"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
