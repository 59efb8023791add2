package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"batchtrack-backend/config"
	"batchtrack-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestLogger(handler.log), gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	api := r.Group("/api")
	api.Use(mw.Identity(), rateLimiter)
	{
		api.GET("/centers", handler.ListCenters)

		api.POST("/drafts", handler.CreateDraft)
		api.GET("/drafts", handler.ListDrafts)
		api.GET("/drafts/:id", handler.GetDraft)
		api.DELETE("/drafts/:id", handler.DeleteDraft)
		api.POST("/drafts/:id/save", handler.SaveDraft)
		api.POST("/drafts/:id/submit", handler.SubmitDraft)
		api.POST("/drafts/:id/reopen", handler.ReopenDraft)
		api.GET("/drafts/:id/centers", handler.ListCompletions)
		api.PUT("/drafts/:id/centers/:center_id", handler.SubmitCenter)
		api.DELETE("/drafts/:id/centers/:center_id", handler.ReopenCenter)
		api.GET("/drafts/:id/cans", handler.ListDraftCans)

		api.GET("/eligibility/:stage", handler.ListEligible)
		api.GET("/reports/daily", handler.DailyReport)

		line := api.Group("/lines/:line")
		{
			line.POST("/cans", handler.CreateCan)
			line.GET("/cans/:id", handler.GetCan)
			line.PATCH("/cans/:id", handler.UpdateCan)
			line.DELETE("/cans/:id", handler.DeleteCan)

			line.POST("/processing", handler.CreateProcessing)
			line.GET("/processing", handler.ListProcessing)
			line.GET("/processing/:id", handler.GetProcessing)
			line.PATCH("/processing/:id", handler.UpdateProcessingMetrics)
			line.DELETE("/processing/:id", handler.DeleteProcessing)
			line.PUT("/processing/:id/cans", handler.SetProcessingCans)
			line.POST("/processing/:id/submit", handler.SubmitProcessing)
			line.POST("/processing/:id/reopen", handler.ReopenProcessing)
			line.POST("/processing/:id/cancel", handler.CancelProcessing)

			line.POST("/packaging", handler.CreatePackaging)
			line.GET("/packaging", handler.ListPackaging)
			line.GET("/packaging/:id", handler.GetPackaging)
			line.PATCH("/packaging/:id", handler.UpdatePackaging)
			line.DELETE("/packaging/:id", handler.DeletePackaging)
			line.POST("/packaging/:id/reopen", handler.ReopenPackaging)

			line.POST("/labeling", handler.CreateLabeling)
			line.GET("/labeling", handler.ListLabeling)
			line.GET("/labeling/:id", handler.GetLabeling)
			line.PATCH("/labeling/:id", handler.UpdateLabeling)
			line.DELETE("/labeling/:id", handler.DeleteLabeling)
			line.POST("/labeling/:id/reopen", handler.ReopenLabeling)
		}
	}

	return r
}
