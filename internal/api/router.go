package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full HTTP surface: middleware chain, every
// route group from the original routes table, and a Prometheus
// metrics endpoint, grounded on the teacher's NewRouter wiring.
func NewRouter(d *Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	d.metrics = NewMetrics(d.Registerer)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware())
	r.Use(metricsMiddleware(d.metrics))
	r.Use(corsMiddleware())
	r.Use(bodyLimitMiddleware(32 << 20))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", d.handleHealth)
		api.POST("/test-vision", d.handleTestVision)
		api.POST("/generate", d.handleGenerate)

		search := api.Group("/search")
		search.GET("", d.handleSearch)
		search.GET("/keywords", d.handleSearchKeywords)

		frames := api.Group("/frames")
		frames.GET("", d.handleListFrames)
		frames.GET("/:id", d.handleGetFrame)
		frames.GET("/:id/image", d.handleFrameImage)
		frames.POST("/:id/tags", d.handleAddTagToFrame)
		frames.GET("/:id/tags", d.handleGetFrameTags)
		frames.DELETE("/:id/tags/:tag_id", d.handleRemoveTagFromFrame)

		automation := api.Group("/automation")
		automation.POST("/find-elements", d.handleFindElements)
		automation.POST("/click", d.handleClick)
		automation.POST("/type", d.handleTypeText)
		automation.POST("/scroll", d.handleScroll)
		automation.POST("/press-key", d.handlePressKey)
		automation.POST("/get-text", d.handleGetText)
		automation.POST("/list-elements", d.handleListElements)
		automation.POST("/open-app", d.handleOpenApp)
		automation.POST("/open-url", d.handleOpenURL)

		tags := api.Group("/tags")
		tags.POST("", d.handleCreateTag)
		tags.GET("", d.handleListTags)
		tags.PUT("/:id", d.handleUpdateTag)
		tags.DELETE("/:id", d.handleDeleteTag)

		settings := api.Group("/settings")
		settings.GET("", d.handleGetSettings)
		settings.POST("", d.handleUpdateSettings)

		ai := api.Group("/ai")
		ai.POST("/validate", d.handleAIValidate)
		ai.POST("/generate", d.handleAIGenerate)

		embeddings := api.Group("/embeddings")
		embeddings.GET("/status", d.handleEmbeddingStatus)
		embeddings.POST("/generate", d.handleGenerateEmbeddings)
		embeddings.POST("/enable", d.handleToggleEmbeddings)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "status": http.StatusNotFound})
	})

	return r
}
