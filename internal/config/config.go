// Package config loads and merges ScreenSearch's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "screensearch.yaml"

// Config is the root configuration tree for a ScreenSearch process.
type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Ocr       OcrConfig       `yaml:"ocr"`
	Storage   StorageConfig   `yaml:"storage"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Server    ServerConfig    `yaml:"server"`
	Vision    VisionConfig    `yaml:"vision"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CaptureConfig controls C2's per-monitor capture loop.
type CaptureConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	Monitors        []int    `yaml:"monitors"`
	ExcludedApps    []string `yaml:"excluded_apps"`
	DifferMode      string   `yaml:"differ_mode"` // "pixel" | "histogram" | "structural"
	DiffThreshold   float64  `yaml:"diff_threshold"`
}

// OcrConfig controls C3's worker pool.
type OcrConfig struct {
	WorkerThreads     int   `yaml:"worker_threads"`
	MaxRetries        int   `yaml:"max_retries"`
	RetryBackoffMs    int   `yaml:"retry_backoff_ms"`
	MinConfidence     float64 `yaml:"min_confidence"`
	StoreEmptyFrames  bool  `yaml:"store_empty_frames"`
	MetricsIntervalSecs int `yaml:"metrics_interval_secs"`
}

// StorageConfig controls C4's image encoding.
type StorageConfig struct {
	MaxWidth   int    `yaml:"max_width"`
	Format     string `yaml:"format"` // "jpeg" | "png"
	Quality    int    `yaml:"quality"`
	CapturesDir string `yaml:"captures_dir"`
}

// StoreConfig controls C5's connection pool.
type StoreConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"max_open_conns"`
	MaxIdleConns      int    `yaml:"max_idle_conns"`
	AcquireTimeoutSec int    `yaml:"acquire_timeout_seconds"`
	CacheSizeKB       int    `yaml:"cache_size_kb"`
}

// EmbeddingConfig controls C6's worker and the embedding backend.
type EmbeddingConfig struct {
	Enabled        *bool  `yaml:"enabled"`
	Backend        string `yaml:"backend"` // "llamacpp" | "degraded"
	Endpoint       string `yaml:"endpoint"`
	ModelName      string `yaml:"model_name"`
	Dimension      int    `yaml:"dimension"`
	BatchSize      int64  `yaml:"batch_size"`
	IntervalSecs   int64  `yaml:"interval_secs"`
	MaxChunkTokens int    `yaml:"max_chunk_tokens"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
}

// RAGConfig controls C8's provider and reranker defaults.
type RAGConfig struct {
	ProviderURL    string  `yaml:"provider_url"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	HybridAlpha    float64 `yaml:"hybrid_alpha"`
	RecencyWeight  float32 `yaml:"recency_weight"`
	LengthWeight   float32 `yaml:"length_weight"`
	KeywordBoost   float32 `yaml:"keyword_boost"`
	TopK           int     `yaml:"top_k"`
	MinScore       float32 `yaml:"min_score"`
}

// ServerConfig controls C9's HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// VisionConfig controls C11 (optional).
type VisionConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Provider string `yaml:"provider"` // "ollama" | "openai"
	APIKey   string `yaml:"api_key"`
}

// RetentionConfig controls C10.
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// LoggingConfig controls the ambient logging stack.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// Default returns the conservative, documented defaults used when no
// config file is present (or a field is absent from one that is).
func Default() Config {
	trueVal := true
	falseVal := false
	return Config{
		Capture: CaptureConfig{
			IntervalSeconds: 5,
			Monitors:        nil,
			ExcludedApps:    []string{"1Password", "KeePass", "Bitwarden"},
			DifferMode:      "histogram",
			DiffThreshold:   0.02,
		},
		Ocr: OcrConfig{
			WorkerThreads:       2,
			MaxRetries:          2,
			RetryBackoffMs:      200,
			MinConfidence:       0.4,
			StoreEmptyFrames:    false,
			MetricsIntervalSecs: 60,
		},
		Storage: StorageConfig{
			MaxWidth:    1920,
			Format:      "jpeg",
			Quality:     80,
			CapturesDir: "./captures",
		},
		Store: StoreConfig{
			Path:              "./screensearch.db",
			MaxOpenConns:      8,
			MaxIdleConns:      4,
			AcquireTimeoutSec: 5,
			CacheSizeKB:       -20000,
		},
		Embedding: EmbeddingConfig{
			Enabled:        &falseVal,
			Backend:        "degraded",
			Endpoint:       "http://127.0.0.1:8080",
			ModelName:      "all-MiniLM-L6-v2",
			Dimension:      384,
			BatchSize:      50,
			IntervalSecs:   60,
			MaxChunkTokens: 256,
			ChunkOverlap:   32,
		},
		RAG: RAGConfig{
			ProviderURL:   "http://127.0.0.1:11434/v1",
			Model:         "llama3",
			HybridAlpha:   0.5,
			RecencyWeight: 0.1,
			LengthWeight:  0.05,
			KeywordBoost:  0.2,
			TopK:          20,
			MinScore:      0,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3131,
		},
		Vision: VisionConfig{
			Enabled:  &falseVal,
			Provider: "ollama",
		},
		Retention: RetentionConfig{
			Days: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			ToFile: false,
		},
	}
}

// Resolve loads configuration from an optional file named by the
// SCREENSEARCH_CONFIG environment variable (falling back to
// ./screensearch.yaml if present), merged over Default().
func Resolve() (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(os.Getenv("SCREENSEARCH_CONFIG"))
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("provided SCREENSEARCH_CONFIG file %q not found", path)
	}

	if path == "" {
		return cfg, nil
	}

	loaded, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	return merge(cfg, loaded), nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// merge overlays non-zero fields of override onto base. Fields using
// *bool (Embedding.Enabled, Vision.Enabled) can be explicitly toggled
// off because their zero value (nil) is distinguishable from "false".
func merge(base, override Config) Config {
	result := base

	if len(override.Capture.Monitors) > 0 {
		result.Capture.Monitors = override.Capture.Monitors
	}
	if len(override.Capture.ExcludedApps) > 0 {
		result.Capture.ExcludedApps = override.Capture.ExcludedApps
	}
	if override.Capture.IntervalSeconds != 0 {
		result.Capture.IntervalSeconds = override.Capture.IntervalSeconds
	}
	if override.Capture.DifferMode != "" {
		result.Capture.DifferMode = override.Capture.DifferMode
	}
	if override.Capture.DiffThreshold != 0 {
		result.Capture.DiffThreshold = override.Capture.DiffThreshold
	}

	if override.Ocr.WorkerThreads != 0 {
		result.Ocr.WorkerThreads = override.Ocr.WorkerThreads
	}
	if override.Ocr.MaxRetries != 0 {
		result.Ocr.MaxRetries = override.Ocr.MaxRetries
	}
	if override.Ocr.RetryBackoffMs != 0 {
		result.Ocr.RetryBackoffMs = override.Ocr.RetryBackoffMs
	}
	if override.Ocr.MinConfidence != 0 {
		result.Ocr.MinConfidence = override.Ocr.MinConfidence
	}
	if override.Ocr.StoreEmptyFrames {
		result.Ocr.StoreEmptyFrames = true
	}
	if override.Ocr.MetricsIntervalSecs != 0 {
		result.Ocr.MetricsIntervalSecs = override.Ocr.MetricsIntervalSecs
	}

	if override.Storage.MaxWidth != 0 {
		result.Storage.MaxWidth = override.Storage.MaxWidth
	}
	if override.Storage.Format != "" {
		result.Storage.Format = override.Storage.Format
	}
	if override.Storage.Quality != 0 {
		result.Storage.Quality = override.Storage.Quality
	}
	if override.Storage.CapturesDir != "" {
		result.Storage.CapturesDir = override.Storage.CapturesDir
	}

	if override.Store.Path != "" {
		result.Store.Path = override.Store.Path
	}
	if override.Store.MaxOpenConns != 0 {
		result.Store.MaxOpenConns = override.Store.MaxOpenConns
	}
	if override.Store.MaxIdleConns != 0 {
		result.Store.MaxIdleConns = override.Store.MaxIdleConns
	}
	if override.Store.AcquireTimeoutSec != 0 {
		result.Store.AcquireTimeoutSec = override.Store.AcquireTimeoutSec
	}
	if override.Store.CacheSizeKB != 0 {
		result.Store.CacheSizeKB = override.Store.CacheSizeKB
	}

	if override.Embedding.Enabled != nil {
		result.Embedding.Enabled = override.Embedding.Enabled
	}
	if override.Embedding.Backend != "" {
		result.Embedding.Backend = override.Embedding.Backend
	}
	if override.Embedding.Endpoint != "" {
		result.Embedding.Endpoint = override.Embedding.Endpoint
	}
	if override.Embedding.ModelName != "" {
		result.Embedding.ModelName = override.Embedding.ModelName
	}
	if override.Embedding.Dimension != 0 {
		result.Embedding.Dimension = override.Embedding.Dimension
	}
	if override.Embedding.BatchSize != 0 {
		result.Embedding.BatchSize = override.Embedding.BatchSize
	}
	if override.Embedding.IntervalSecs != 0 {
		result.Embedding.IntervalSecs = override.Embedding.IntervalSecs
	}
	if override.Embedding.MaxChunkTokens != 0 {
		result.Embedding.MaxChunkTokens = override.Embedding.MaxChunkTokens
	}
	if override.Embedding.ChunkOverlap != 0 {
		result.Embedding.ChunkOverlap = override.Embedding.ChunkOverlap
	}

	if override.RAG.ProviderURL != "" {
		result.RAG.ProviderURL = override.RAG.ProviderURL
	}
	if override.RAG.Model != "" {
		result.RAG.Model = override.RAG.Model
	}
	if override.RAG.APIKey != "" {
		result.RAG.APIKey = override.RAG.APIKey
	}
	if override.RAG.HybridAlpha != 0 {
		result.RAG.HybridAlpha = override.RAG.HybridAlpha
	}
	if override.RAG.RecencyWeight != 0 {
		result.RAG.RecencyWeight = override.RAG.RecencyWeight
	}
	if override.RAG.LengthWeight != 0 {
		result.RAG.LengthWeight = override.RAG.LengthWeight
	}
	if override.RAG.KeywordBoost != 0 {
		result.RAG.KeywordBoost = override.RAG.KeywordBoost
	}
	if override.RAG.TopK != 0 {
		result.RAG.TopK = override.RAG.TopK
	}
	if override.RAG.MinScore != 0 {
		result.RAG.MinScore = override.RAG.MinScore
	}

	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}

	if override.Vision.Enabled != nil {
		result.Vision.Enabled = override.Vision.Enabled
	}
	if override.Vision.Endpoint != "" {
		result.Vision.Endpoint = override.Vision.Endpoint
	}
	if override.Vision.Model != "" {
		result.Vision.Model = override.Vision.Model
	}
	if override.Vision.Provider != "" {
		result.Vision.Provider = override.Vision.Provider
	}
	if override.Vision.APIKey != "" {
		result.Vision.APIKey = override.Vision.APIKey
	}

	if override.Retention.Days != 0 {
		result.Retention.Days = override.Retention.Days
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.ToFile {
		result.Logging.ToFile = true
	}

	return result
}

// EmbeddingEnabled reports whether embeddings are enabled per config,
// defaulting to false when unset.
func (c Config) EmbeddingEnabled() bool {
	return c.Embedding.Enabled != nil && *c.Embedding.Enabled
}

// VisionEnabled reports whether the optional vision analyzer is on.
func (c Config) VisionEnabled() bool {
	return c.Vision.Enabled != nil && *c.Vision.Enabled
}
