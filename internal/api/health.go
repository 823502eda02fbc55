package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth implements GET /api/health.
func (d *Deps) handleHealth(c *gin.Context) {
	stats, err := d.Store.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     d.Version,
		FrameCount:  stats.FrameCount,
		OcrCount:    stats.OcrCount,
		TagCount:    stats.TagCount,
		OldestFrame: stats.OldestFrame,
		NewestFrame: stats.NewestFrame,
	})
}
