// Package vision implements C11: an optional worker that claims
// pending analysis tasks and asks a vision-capable model to describe
// each frame's screenshot, recording a structured summary back onto
// the task.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"screensearch/internal/config"
	"screensearch/internal/llmclient"
	"screensearch/internal/store"
)

// Client analyzes one screenshot, given its image file path and a text prompt
// describing the frame's context (active window, OCR text), and
// returns a free-form description.
type Client interface {
	Analyze(ctx context.Context, imagePath string, prompt string) (string, error)
}

// httpClient wraps a local llama.cpp-compatible multimodal server,
// the "ollama"/local backend. Ollama's OpenAI-compatible endpoint and
// llama.cpp's /completion endpoint both accept this shape.
type httpClient struct {
	inner *llmclient.Client
}

func (c *httpClient) Analyze(ctx context.Context, imagePath string, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("vision: read image: %w", err)
	}
	image := base64.StdEncoding.EncodeToString(data)
	return c.inner.GetResponseWithImages(prompt, []string{image})
}

// openaiClient wraps any OpenAI-compatible chat-completions endpoint
// that accepts image content parts (OpenAI itself, or a compatible
// gateway reached via a custom base URL).
type openaiClient struct {
	client *openai.Client
	model  string
}

func (c *openaiClient) Analyze(ctx context.Context, imagePath string, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("vision: read image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{OfText: &openai.ChatCompletionContentPartTextParam{Text: prompt}},
							{OfImageURL: &openai.ChatCompletionContentPartImageParam{
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
							}},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// NewClient builds the configured vision backend. Returns an error for
// an unrecognized provider rather than silently degrading, since a
// misconfigured vision backend should surface immediately rather than
// fail every claimed task one at a time.
func NewClient(cfg config.VisionConfig) (Client, error) {
	switch cfg.Provider {
	case "", "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://127.0.0.1:11434"
		}
		return &httpClient{inner: llmclient.NewClient(endpoint)}, nil
	case "openai":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		client := openai.NewClient(opts...)
		return &openaiClient{client: &client, model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("vision: unsupported provider %q", cfg.Provider)
	}
}

// Worker claims analysis tasks one at a time, rebuilding its client
// only when the relevant settings change, grounded on the original
// worker's config-diff check.
type Worker struct {
	store    *store.Store
	workerID string

	client     Client
	clientCfg  config.VisionConfig
	pollEvery  time.Duration
	idleSleep  time.Duration
	errorSleep time.Duration
}

// New builds a Worker. No client is constructed until the first tick
// finds vision enabled, since building one eagerly would require valid
// credentials even when the feature is off.
func New(s *store.Store, workerID string) *Worker {
	return &Worker{
		store:      s,
		workerID:   workerID,
		pollEvery:  5 * time.Second,
		idleSleep:  time.Second,
		errorSleep: 5 * time.Second,
	}
}

// Run loops until ctx is cancelled: skip if vision is disabled, claim
// and process one task if available, otherwise sleep briefly.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		settings, err := w.store.GetSettings(ctx)
		if err != nil {
			log.Error().Err(err).Msg("vision: failed to read settings")
			w.sleep(ctx, w.errorSleep)
			continue
		}
		if !settings.VisionEnabled {
			w.sleep(ctx, w.pollEvery)
			continue
		}

		cfg := config.VisionConfig{
			Provider: settings.VisionProvider,
			Endpoint: settings.VisionEndpoint,
			Model:    settings.VisionModel,
			APIKey:   settings.VisionAPIKey,
		}
		if w.client == nil || cfg != w.clientCfg {
			client, err := NewClient(cfg)
			if err != nil {
				log.Error().Err(err).Msg("vision: failed to build client for updated settings")
				w.sleep(ctx, w.errorSleep)
				continue
			}
			w.client = client
			w.clientCfg = cfg
		}

		processed, err := w.processNext(ctx)
		if err != nil {
			log.Error().Err(err).Msg("vision: failed to process task")
			w.sleep(ctx, w.errorSleep)
			continue
		}
		if !processed {
			w.sleep(ctx, w.idleSleep)
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// processNext claims one task, analyzes it, and completes or fails it.
// Returns false when there was no pending task to claim.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	task, err := w.store.ClaimNextAnalysisTask(ctx, w.workerID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	start := time.Now()
	frame, err := w.store.GetFrame(ctx, task.FrameID)
	if err != nil || frame == nil {
		return true, w.store.FailAnalysisTask(ctx, task.ID, "frame not found")
	}

	ocrRows, err := w.store.GetOcrTextForFrame(ctx, task.FrameID)
	if err != nil {
		return true, w.store.FailAnalysisTask(ctx, task.ID, err.Error())
	}
	prompt := buildPrompt(*frame, ocrRows)

	description, err := w.client.Analyze(ctx, frame.FilePath, prompt)
	if err != nil {
		_ = w.store.FailAnalysisTask(ctx, task.ID, err.Error())
		return true, nil
	}

	err = w.store.CompleteAnalysisTask(ctx, task.ID, description, "", "", "", 0, time.Since(start).Milliseconds())
	return true, err
}

func buildPrompt(f store.Frame, ocrRows []store.OcrText) string {
	prompt := "Describe what the user is doing in this screenshot in one or two sentences."
	if f.ActiveWindow != nil {
		prompt += fmt.Sprintf(" The active window is titled %q.", *f.ActiveWindow)
	}
	if f.ActiveProcess != nil {
		prompt += fmt.Sprintf(" The process is %s.", *f.ActiveProcess)
	}
	if len(ocrRows) > 0 {
		prompt += " Visible text includes:"
		for i, row := range ocrRows {
			if i >= 5 {
				break
			}
			prompt += fmt.Sprintf(" %q", row.Text)
		}
	}
	return prompt
}
