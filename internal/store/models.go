package store

import "time"

// Frame is one captured screenshot on one monitor.
type Frame struct {
	ID            int64
	ChunkID       *int64
	Timestamp     time.Time
	MonitorIndex  int
	DeviceName    string
	FilePath      string
	ActiveWindow  *string
	ActiveProcess *string
	BrowserURL    *string
	Width         int
	Height        int
	Focused       bool
	CreatedAt     time.Time
}

// NewFrame carries the fields needed to insert a Frame.
type NewFrame struct {
	ChunkID       *int64
	Timestamp     time.Time
	MonitorIndex  int
	DeviceName    string
	FilePath      string
	ActiveWindow  *string
	ActiveProcess *string
	BrowserURL    *string
	Width         int
	Height        int
	Focused       bool
}

// OcrText is one text region detected on one frame.
type OcrText struct {
	ID         int64
	FrameID    int64
	Text       string
	TextJSON   *string
	X, Y       int
	Width      int
	Height     int
	Confidence float64
	CreatedAt  time.Time
}

// NewOcrText carries the fields needed to insert an OcrText row.
type NewOcrText struct {
	FrameID    int64
	Text       string
	TextJSON   *string
	X, Y       int
	Width      int
	Height     int
	Confidence float64
}

// Embedding is one embedded chunk of a frame's combined OCR text.
type Embedding struct {
	ID            int64
	FrameID       int64
	ChunkText     string
	ChunkIndex    int
	Embedding     []float32
	EmbeddingDim  int
	CreatedAt     time.Time
}

// Tag is a user-defined label.
type Tag struct {
	ID          int64
	Name        string
	Description *string
	Color       *string
	CreatedAt   time.Time
}

// NewTag carries the fields needed to insert or update a Tag.
type NewTag struct {
	Name        string
	Description *string
	Color       *string
}

// Settings is the process-wide singleton configuration row.
type Settings struct {
	ID              int64
	CaptureInterval int
	Monitors        []int
	ExcludedApps    []string
	IsPaused        bool
	RetentionDays   int
	VisionEnabled   bool
	VisionEndpoint  string
	VisionModel     string
	VisionProvider  string
	VisionAPIKey    string
	UpdatedAt       time.Time
}

// UpdateSettings carries the fields accepted by UpdateSettings.
type UpdateSettings struct {
	CaptureInterval int
	Monitors        []int
	ExcludedApps    []string
	IsPaused        bool
	RetentionDays   int
	VisionEnabled   bool
	VisionEndpoint  string
	VisionModel     string
	VisionProvider  string
	VisionAPIKey    string
}

// AnalysisTask is one claimable unit of vision-analysis work (C11).
type AnalysisTask struct {
	ID              int64
	FrameID         int64
	WorkerID        *string
	ClaimedAt       *time.Time
	State           string // pending | in-progress | done | failed
	Description     *string
	VisibleTextJSON *string
	ActivityType    *string
	AppHint         *string
	Confidence      *float64
	AnalysisTimeMs  *int64
	ErrorMessage    *string
}

const (
	AnalysisPending    = "pending"
	AnalysisInProgress = "in-progress"
	AnalysisDone       = "done"
	AnalysisFailed     = "failed"
)

// FrameFilter narrows search/listing operations. Fields are ANDed.
type FrameFilter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	AppName      *string
	DeviceName   *string
	MonitorIndex *int
}

// Pagination bounds a result set.
type Pagination struct {
	Limit  int64
	Offset int64
}

// SearchResult is one frame with its matched OCR rows and tags, as
// returned by lexical search.
type SearchResult struct {
	Frame          Frame
	OcrMatches     []OcrText
	RelevanceScore float64
	Tags           []Tag
}

// SemanticResult is one scored chunk, as returned by semantic and
// hybrid search.
type SemanticResult struct {
	Frame           Frame
	ChunkText       string
	ChunkIndex      int
	SimilarityScore float32
}

// Statistics summarizes the store's contents.
type Statistics struct {
	FrameCount  int64
	OcrCount    int64
	TagCount    int64
	OldestFrame *time.Time
	NewestFrame *time.Time
}
