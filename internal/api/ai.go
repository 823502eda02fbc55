package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"screensearch/internal/apperr"
	"screensearch/internal/config"
	"screensearch/internal/rag"
	"screensearch/internal/retrieval"
	"screensearch/internal/store"
)

// handleGenerate implements POST /api/generate: the RAG assembler
// answering a question strictly from retrieved screen history.
func (d *Deps) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if d.RAG == nil {
		respondError(c, apperr.New(apperr.KindConfigError, "RAG is not enabled (embeddings disabled)"))
		return
	}

	answer, err := d.RAG.Ask(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, generateResponse{Answer: answer.Answer, Sources: answer.Sources})
}

// handleAIValidate implements POST /api/ai/validate: probes
// {provider_url}/models with an optional bearer token and reports
// whether the endpoint answered with JSON, grounded on
// test_vision_config's "try a cheap call, report success/failure"
// shape.
func (d *Deps) handleAIValidate(c *gin.Context) {
	var req aiValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.ProviderURL) == "" {
		respondError(c, apperr.InvalidRequest("provider_url must not be empty"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	url := strings.TrimRight(req.ProviderURL, "/") + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		respondError(c, apperr.InvalidRequest("invalid provider_url: %v", err))
		return
	}
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fmt.Sprintf("connection failed: %v", err)})
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var js any
	if err := json.Unmarshal(body, &js); err != nil || resp.StatusCode >= 400 {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "connection successful"})
}

// handleAIGenerate implements POST /api/ai/generate: builds a markdown
// activity report for a time window using RAG-enhanced context when
// embeddings are available, falling back to a traditional frame
// summary otherwise, then asks the caller-specified provider to write
// the report. Grounded on rag_helpers.rs's build_rag_context dispatch.
func (d *Deps) handleAIGenerate(c *gin.Context) {
	var req aiGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.ProviderURL) == "" || strings.TrimSpace(req.Model) == "" {
		respondError(c, apperr.InvalidRequest("provider_url and model are required"))
		return
	}

	ctx := c.Request.Context()
	endTime := time.Now()
	if req.EndTime != nil {
		endTime = *req.EndTime
	}
	startTime := endTime.Add(-24 * time.Hour)
	if req.StartTime != nil {
		startTime = *req.StartTime
	}

	contextStr, source, err := d.buildReportContext(ctx, req.Prompt, startTime, endTime)
	if err != nil {
		respondError(c, err)
		return
	}

	systemPrompt := "You are ScreenSearch AI. Write a concise markdown activity report strictly from the provided context."
	userPrompt := contextStr
	if req.Prompt != "" {
		userPrompt = fmt.Sprintf("Focus: %s\n\n%s", req.Prompt, contextStr)
	}

	opts := []option.RequestOption{option.WithAPIKey(req.APIKey), option.WithBaseURL(req.ProviderURL)}
	client := openai.NewClient(opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		respondError(c, apperr.External(err, "generate report"))
		return
	}
	if len(resp.Choices) == 0 {
		respondError(c, apperr.New(apperr.KindExternalFailure, "empty response from provider"))
		return
	}

	c.JSON(http.StatusOK, aiGenerateResponse{Report: resp.Choices[0].Message.Content, ContextSource: source})
}

// buildReportContext picks RAG-enhanced context (hybrid search +
// rerank) when embeddings are enabled and populated, else a
// traditional frame/app-usage summary, matching
// build_rag_context/build_traditional_context.
func (d *Deps) buildReportContext(ctx context.Context, query string, start, end time.Time) (string, string, error) {
	if d.Embedder != nil {
		if count, err := d.Store.CountFramesWithEmbeddings(ctx); err == nil && count > 0 {
			return d.buildRagContext(ctx, query, start, end)
		}
	}
	return d.buildTraditionalContext(ctx, start, end)
}

func (d *Deps) buildRagContext(ctx context.Context, query string, start, end time.Time) (string, string, error) {
	if query == "" {
		query = "what was the user doing"
	}
	vec, err := d.Embedder.Embed(ctx, query)
	if err != nil {
		return d.buildTraditionalContext(ctx, start, end)
	}
	results, err := d.Store.HybridSearch(ctx, query, vec, 0.3, 50)
	if err != nil || len(results) == 0 {
		return d.buildTraditionalContext(ctx, start, end)
	}

	filtered := results[:0:0]
	for _, r := range results {
		if !r.Frame.Timestamp.Before(start) && !r.Frame.Timestamp.After(end) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return d.buildTraditionalContext(ctx, start, end)
	}

	retrieval.BoostKeywordMatches(filtered, query, 0.2)
	filtered = retrieval.Rerank(filtered, retrieval.DefaultRerankConfig())

	var b strings.Builder
	fmt.Fprintf(&b, "Activity Period: %s to %s\n\n", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
	b.WriteString("Relevant Screen Content (OCR):\n")
	for i, r := range filtered {
		if i >= 20 {
			break
		}
		app := derefOr(r.Frame.ActiveProcess, "Unknown")
		window := derefOr(r.Frame.ActiveWindow, "")
		text := r.ChunkText
		if len(text) > 200 {
			text = text[:200]
		}
		fmt.Fprintf(&b, "- [%s] %s - %s: %s\n", r.Frame.Timestamp.Format("15:04"), app, window, text)
	}
	return b.String(), "Semantic Search", nil
}

// handleTestVision implements POST /api/test-vision: exercises the
// caller-supplied provider settings with a one-shot "reply with OK"
// prompt, reusing the same chat-client construction the RAG assembler
// uses, grounded on test_vision_config.
func (d *Deps) handleTestVision(c *gin.Context) {
	var req testVisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}

	client, err := rag.NewChatClient(config.VisionConfig{
		Provider: req.Provider,
		Endpoint: req.Endpoint,
		Model:    req.Model,
		APIKey:   req.APIKey,
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()

	response, err := client.Generate(ctx, "You are a connection test.", "Test connection. Reply with 'OK'.")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fmt.Sprintf("connection failed: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "connection successful", "response": response})
}

func (d *Deps) buildTraditionalContext(ctx context.Context, start, end time.Time) (string, string, error) {
	frames, err := d.Store.GetFramesInRange(ctx, start, end, store.FrameFilter{}, store.Pagination{Limit: 100})
	if err != nil {
		return "", "", err
	}

	appCounts := make(map[string]int)
	var timeline strings.Builder
	for _, f := range frames {
		app := derefOr(f.ActiveProcess, "Unknown")
		appCounts[app]++
		window := derefOr(f.ActiveWindow, "")
		fmt.Fprintf(&timeline, "- [%s] App: %s, Window: %s\n", f.Timestamp.Format("15:04"), app, window)
	}

	var usage strings.Builder
	first := true
	for app, n := range appCounts {
		if !first {
			usage.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&usage, "%s: %d frames", app, n)
	}

	context := fmt.Sprintf(
		"Activity Period: %s to %s\n\nSummary Data:\n- Total Snapshots: %d\n- App Usage Distribution: %s\n\nDetailed Log (Sample):\n%s",
		start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"), len(frames), usage.String(), timeline.String(),
	)
	return context, "Recent Activity (Fallback)", nil
}
