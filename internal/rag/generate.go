// Package rag implements C8: the RAG assembler. It embeds a user's
// question, retrieves relevant screen-history chunks, and asks a chat
// model to answer strictly from that retrieved context.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"screensearch/internal/apperr"
	"screensearch/internal/embedding"
	"screensearch/internal/retrieval"
	"screensearch/internal/store"
)

const systemPrompt = "You are ScreenSearch AI, a helpful assistant that answers questions based strictly on the user's screen history context provided. If the context doesn't contain the answer, say so. Be concise but helpful. Cite sources by referring to the app or time if relevant."

// ChatClient generates a chat completion from a system and user
// prompt. Implemented by the clients NewChatClient builds in
// chatclient.go (an OpenAI-compatible or local llama.cpp/Ollama
// endpoint).
type ChatClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config tunes retrieval before the chat call.
type Config struct {
	TopK          int
	MinScore      float32
	HybridAlpha   float64
	RerankConfig  retrieval.RerankConfig
	KeywordBoost  float32
}

// DefaultConfig matches the original assembler's fixed "top 5 at
// threshold 0.4" retrieval window.
func DefaultConfig() Config {
	return Config{
		TopK:         5,
		MinScore:     0.4,
		HybridAlpha:  0.5,
		RerankConfig: retrieval.DefaultRerankConfig(),
		KeywordBoost: 0.2,
	}
}

// Answer is the assembler's response shape.
type Answer struct {
	Answer  string
	Sources []int64 // frame ids backing the answer
}

// Assembler ties together embedding, hybrid search, reranking, and a
// chat client into one question-answering operation.
type Assembler struct {
	cfg      Config
	store    *store.Store
	embedder embedding.Provider
	chat     ChatClient
}

// New builds an Assembler.
func New(cfg Config, s *store.Store, embedder embedding.Provider, chat ChatClient) *Assembler {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Assembler{cfg: cfg, store: s, embedder: embedder, chat: chat}
}

// Ask embeds query, retrieves supporting context, and asks the chat
// client to answer strictly from it. Returns a canned "no context
// found" answer (not an error) when retrieval comes up empty, matching
// the original handler's behavior of always returning 200.
func (a *Assembler) Ask(ctx context.Context, query string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, apperr.InvalidRequest("query must not be empty")
	}
	if a.embedder == nil {
		return Answer{}, apperr.New(apperr.KindConfigError, "embeddings are not enabled")
	}

	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return Answer{}, apperr.External(err, "embed query")
	}

	results, err := a.store.HybridSearch(ctx, query, queryVec, a.cfg.HybridAlpha, a.cfg.TopK*4)
	if err != nil {
		return Answer{}, apperr.Storage(err, "hybrid search")
	}

	retrieval.BoostKeywordMatches(results, query, a.cfg.KeywordBoost)
	rerankCfg := a.cfg.RerankConfig
	rerankCfg.MinScore = a.cfg.MinScore
	rerankCfg.TopK = a.cfg.TopK
	results = retrieval.Rerank(results, rerankCfg)

	if len(results) == 0 {
		return Answer{Answer: "I couldn't find any relevant screen content to answer your question.", Sources: []int64{}}, nil
	}

	contextStr, sources := buildContext(results)

	userPrompt := fmt.Sprintf("User Question: %s\n\nContext from Screen History:\n%s", query, contextStr)
	answer, err := a.chat.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		log.Error().Err(err).Msg("rag: chat generation failed")
		return Answer{}, apperr.External(err, "generate answer")
	}

	return Answer{Answer: answer, Sources: sources}, nil
}

func buildContext(results []store.SemanticResult) (string, []int64) {
	var b strings.Builder
	sources := make([]int64, 0, len(results))

	for i, r := range results {
		ts := r.Frame.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		app := "Unknown App"
		if r.Frame.ActiveProcess != nil {
			app = *r.Frame.ActiveProcess
		}
		window := "Unknown Window"
		if r.Frame.ActiveWindow != nil {
			window = *r.Frame.ActiveWindow
		}

		fmt.Fprintf(&b, "[%d] Time: %s, App: %s, Window: %s\nContent: %s\n\n",
			i+1, ts.Format("2006-01-02 15:04:05"), app, window, r.ChunkText)
		sources = append(sources, r.Frame.ID)
	}
	return b.String(), sources
}
