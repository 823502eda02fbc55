package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screensearch/internal/apperr"
	"screensearch/internal/store"
)

// handleGetSettings implements GET /api/settings.
func (d *Deps) handleGetSettings(c *gin.Context) {
	settings, err := d.Store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// handleUpdateSettings implements POST /api/settings, validating the
// same invariants as update_settings: capture interval and retention
// must both be at least 1.
func (d *Deps) handleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if req.CaptureInterval < 1 {
		respondError(c, apperr.InvalidRequest("capture interval must be at least 1 second"))
		return
	}
	if req.RetentionDays < 1 {
		respondError(c, apperr.InvalidRequest("retention days must be at least 1 day"))
		return
	}

	updated, err := d.Store.UpdateSettings(c.Request.Context(), store.UpdateSettings{
		CaptureInterval: req.CaptureInterval,
		Monitors:        req.Monitors,
		ExcludedApps:    req.ExcludedApps,
		IsPaused:        req.IsPaused,
		RetentionDays:   req.RetentionDays,
		VisionEnabled:   req.VisionEnabled,
		VisionEndpoint:  req.VisionEndpoint,
		VisionModel:     req.VisionModel,
		VisionProvider:  req.VisionProvider,
		VisionAPIKey:    req.VisionAPIKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(updated))
}
