package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"screensearch/internal/apperr"
)

// handleEmbeddingStatus implements GET /api/embeddings/status.
func (d *Deps) handleEmbeddingStatus(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := d.Store.GetStatistics(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	withEmbeddings, err := d.Store.CountFramesWithEmbeddings(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	lastID, err := d.Store.LastEmbeddedFrameID(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	coverage := 0.0
	if stats.FrameCount > 0 {
		coverage = float64(withEmbeddings) / float64(stats.FrameCount) * 100
	}

	c.JSON(http.StatusOK, EmbeddingStatusResponse{
		Enabled:              d.Embedder != nil,
		Model:                d.Embedding.ModelName,
		TotalFrames:          stats.FrameCount,
		FramesWithEmbeddings: withEmbeddings,
		CoveragePercent:      coverage,
		LastProcessedFrameID: lastID,
		Generating:           d.generating.Load(),
	})
}

// handleGenerateEmbeddings implements POST /api/embeddings/generate:
// spawns a background batch if one isn't already running, matching the
// original's single in-flight generation guard.
func (d *Deps) handleGenerateEmbeddings(c *gin.Context) {
	if d.EmbedWorker == nil {
		respondError(c, apperr.New(apperr.KindConfigError, "embeddings are not enabled"))
		return
	}
	var req embeddingGenerateRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if !d.generating.CompareAndSwap(false, true) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "embedding generation already running"})
		return
	}

	go func() {
		defer d.generating.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		d.EmbedWorker.RunOnce(ctx)
		log.Info().Msg("api: manual embedding batch finished")
	}()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "embedding generation started"})
}

// handleToggleEmbeddings implements POST /api/embeddings/enable.
func (d *Deps) handleToggleEmbeddings(c *gin.Context) {
	var req embeddingEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}

	value := "false"
	if req.Enabled {
		value = "true"
	}
	if err := d.Store.SetMetadata(c.Request.Context(), "embeddings_enabled", value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": req.Enabled})
}
