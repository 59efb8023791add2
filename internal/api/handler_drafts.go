package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/mw"
)

// ListCenters handles GET /api/centers.
func (h *Handler) ListCenters(c *gin.Context) {
	centers, err := h.svc.Centers.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, centers)
}

// CreateDraft handles POST /api/drafts.
func (h *Handler) CreateDraft(c *gin.Context) {
	var req draft.CreateInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	d, err := h.svc.Drafts.Create(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDrafts handles GET /api/drafts.
func (h *Handler) ListDrafts(c *gin.Context) {
	var filter draft.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	drafts, err := h.svc.Drafts.List(c.Request.Context(), mw.Actor(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, drafts)
}

// GetDraft handles GET /api/drafts/:id.
func (h *Handler) GetDraft(c *gin.Context) {
	d, err := h.svc.Drafts.Get(c.Request.Context(), mw.Actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDraft handles DELETE /api/drafts/:id.
func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.svc.Drafts.Delete(c.Request.Context(), mw.Actor(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SaveDraft handles POST /api/drafts/:id/save.
func (h *Handler) SaveDraft(c *gin.Context) {
	h.draftTransition(c, h.svc.Drafts.SaveDraft)
}

// SubmitDraft handles POST /api/drafts/:id/submit.
func (h *Handler) SubmitDraft(c *gin.Context) {
	h.draftTransition(c, h.svc.Drafts.Submit)
}

// ReopenDraft handles POST /api/drafts/:id/reopen.
func (h *Handler) ReopenDraft(c *gin.Context) {
	h.draftTransition(c, h.svc.Drafts.Reopen)
}

func (h *Handler) draftTransition(c *gin.Context, op func(context.Context, identity.Actor, string) (draft.Draft, error)) {
	d, err := op(c.Request.Context(), mw.Actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListCompletions handles GET /api/drafts/:id/centers.
func (h *Handler) ListCompletions(c *gin.Context) {
	completions, err := h.svc.Drafts.ListCompletions(c.Request.Context(), mw.Actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, completions)
}

// SubmitCenter handles PUT /api/drafts/:id/centers/:center_id.
func (h *Handler) SubmitCenter(c *gin.Context) {
	completion, err := h.svc.Drafts.SubmitCenter(c.Request.Context(), mw.Actor(c), c.Param("id"), c.Param("center_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

// ReopenCenter handles DELETE /api/drafts/:id/centers/:center_id.
func (h *Handler) ReopenCenter(c *gin.Context) {
	if err := h.svc.Drafts.ReopenCenter(c.Request.Context(), mw.Actor(c), c.Param("id"), c.Param("center_id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDraftCans handles GET /api/drafts/:id/cans.
func (h *Handler) ListDraftCans(c *gin.Context) {
	var filter can.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}
	cans, err := h.svc.Cans.ListByDraft(c.Request.Context(), mw.Actor(c), c.Param("id"), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cans)
}
