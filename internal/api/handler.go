package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/eligibility"
	"batchtrack-backend/internal/labeling"
	"batchtrack-backend/internal/packaging"
	"batchtrack-backend/internal/processing"
	"batchtrack-backend/internal/report"
	"batchtrack-backend/internal/store"
)

// Services bundles the lifecycle operations the handlers expose.
type Services struct {
	Drafts      *draft.Service
	Cans        *can.Registry
	Processing  *processing.Service
	Packaging   *packaging.Service
	Labeling    *labeling.Service
	Eligibility *eligibility.Resolver
	Reports     *report.Aggregator
	Centers     *store.CenterDirectory
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc Services
	log *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc Services, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.Named("api"),
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindForbidden:    http.StatusForbidden,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindBusinessRule: http.StatusUnprocessableEntity,
	apperr.KindInternal:     http.StatusInternalServerError,
}

// fail renders err with the status code of its kind. Internal errors are
// logged and their cause is not exposed.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal error"})
		return
	}

	var e *apperr.Error
	if errors.As(err, &e) {
		c.AbortWithStatusJSON(status, errorResponse{Error: e.Message, Details: e.Details})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// badRequest renders a binding failure.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
