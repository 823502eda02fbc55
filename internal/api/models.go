package api

import "time"

// FrameResponse is the API-facing shape of a store.Frame, enriched
// with its OCR text and tags, matching the original handlers' JSON
// contract field-for-field.
type FrameResponse struct {
	ID             int64          `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	FilePath       string         `json:"file_path"`
	AppName        string         `json:"app_name"`
	WindowName     string         `json:"window_name"`
	OcrText        string         `json:"ocr_text"`
	Tags           []TagResponse  `json:"tags"`
	Description    *string        `json:"description,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	AnalysisStatus *string        `json:"analysis_status,omitempty"`
}

// TagResponse is the API-facing shape of a store.Tag.
type TagResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaginationInfo describes a page of a larger result set.
type PaginationInfo struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
	Total  int64 `json:"total"`
}

// PaginatedFramesResponse wraps a page of frames with its pagination
// metadata, matching GET /api/frames' envelope.
type PaginatedFramesResponse struct {
	Data       []FrameResponse `json:"data"`
	Pagination PaginationInfo  `json:"pagination"`
}

// SearchResultResponse is the API-facing shape of a store.SearchResult.
type SearchResultResponse struct {
	Frame          FrameSummary  `json:"frame"`
	OcrMatches     []string      `json:"ocr_matches"`
	RelevanceScore float64       `json:"relevance_score"`
	Tags           []string      `json:"tags"`
}

// FrameSummary is the compact frame shape embedded in search results.
type FrameSummary struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	FilePath      string    `json:"file_path"`
	ActiveProcess string    `json:"active_process"`
	ActiveWindow  string    `json:"active_window"`
}

// HealthResponse mirrors GET /api/health's body.
type HealthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	FrameCount  int64      `json:"frame_count"`
	OcrCount    int64      `json:"ocr_count"`
	TagCount    int64      `json:"tag_count"`
	OldestFrame *time.Time `json:"oldest_frame,omitempty"`
	NewestFrame *time.Time `json:"newest_frame,omitempty"`
}

// EmbeddingStatusResponse mirrors GET /api/embeddings/status.
type EmbeddingStatusResponse struct {
	Enabled               bool    `json:"enabled"`
	Model                 string  `json:"model"`
	TotalFrames           int64   `json:"total_frames"`
	FramesWithEmbeddings  int64   `json:"frames_with_embeddings"`
	CoveragePercent       float64 `json:"coverage_percent"`
	LastProcessedFrameID  *int64  `json:"last_processed_frame_id,omitempty"`
	Generating            bool    `json:"generating"`
}

// createTagRequest is the body shared by POST /api/tags and PUT /api/tags/:id.
type createTagRequest struct {
	TagName     string  `json:"tag_name"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// addTagToFrameRequest is the body of POST /api/frames/:id/tags.
type addTagToFrameRequest struct {
	TagID int64 `json:"tag_id"`
}

// settingsRequest mirrors the settings row's writable fields.
type settingsRequest struct {
	CaptureInterval int      `json:"capture_interval"`
	Monitors        []int    `json:"monitors"`
	ExcludedApps    []string `json:"excluded_apps"`
	IsPaused        bool     `json:"is_paused"`
	RetentionDays   int      `json:"retention_days"`
	VisionEnabled   bool     `json:"vision_enabled"`
	VisionEndpoint  string   `json:"vision_endpoint"`
	VisionModel     string   `json:"vision_model"`
	VisionProvider  string   `json:"vision_provider"`
	VisionAPIKey    string   `json:"vision_api_key"`
}

// settingsResponse mirrors the settings row returned to clients.
type settingsResponse struct {
	ID              int64     `json:"id"`
	CaptureInterval int       `json:"capture_interval"`
	Monitors        []int     `json:"monitors"`
	ExcludedApps    []string  `json:"excluded_apps"`
	IsPaused        bool      `json:"is_paused"`
	RetentionDays   int       `json:"retention_days"`
	VisionEnabled   bool      `json:"vision_enabled"`
	VisionEndpoint  string    `json:"vision_endpoint"`
	VisionModel     string    `json:"vision_model"`
	VisionProvider  string    `json:"vision_provider"`
	VisionAPIKey    string    `json:"vision_api_key"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// generateRequest is the body of POST /api/generate (RAG Q&A).
type generateRequest struct {
	Query string `json:"query"`
}

// generateResponse is the body of POST /api/generate's response.
type generateResponse struct {
	Answer  string  `json:"answer"`
	Sources []int64 `json:"sources"`
}

// aiValidateRequest is the body of POST /api/ai/validate.
type aiValidateRequest struct {
	ProviderURL string `json:"provider_url"`
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model"`
}

// aiGenerateRequest is the body of POST /api/ai/generate.
type aiGenerateRequest struct {
	ProviderURL string     `json:"provider_url"`
	APIKey      string     `json:"api_key,omitempty"`
	Model       string     `json:"model"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Prompt      string     `json:"prompt,omitempty"`
}

// aiGenerateResponse is the body of POST /api/ai/generate's response.
type aiGenerateResponse struct {
	Report        string `json:"report"`
	ContextSource string `json:"context_source"`
}

// embeddingEnableRequest is the body of POST /api/embeddings/enable.
type embeddingEnableRequest struct {
	Enabled bool `json:"enabled"`
}

// embeddingGenerateRequest is the body of POST /api/embeddings/generate.
type embeddingGenerateRequest struct {
	BatchSize int64 `json:"batch_size,omitempty"`
}

// testVisionRequest is the body of POST /api/test-vision.
type testVisionRequest struct {
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
}
