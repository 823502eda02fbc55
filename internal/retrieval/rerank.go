// Package retrieval implements C7: fusing, reranking, and boosting
// search results before they reach the HTTP layer or the RAG assembler.
package retrieval

import (
	"sort"
	"strings"

	"screensearch/internal/store"
)

// RerankConfig tunes rerank_results' recency/length boosts and output size.
type RerankConfig struct {
	TopK          int
	RecencyWeight float32
	LengthWeight  float32
	MinScore      float32
}

// DefaultRerankConfig matches the original RAG pipeline's tuning.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{TopK: 20, RecencyWeight: 0.1, LengthWeight: 0.05, MinScore: 0.0}
}

// Rerank combines each result's base similarity score with a recency
// boost (more recent frames score higher) and a length boost (longer
// chunks score higher), then deduplicates to the single best-scoring
// chunk per frame and truncates to cfg.TopK.
func Rerank(results []store.SemanticResult, cfg RerankConfig) []store.SemanticResult {
	if len(results) == 0 {
		return results
	}

	filtered := results[:0:0]
	for _, r := range results {
		if r.SimilarityScore >= cfg.MinScore {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return filtered
	}

	minTime, maxTime := filtered[0].Frame.Timestamp.Unix(), filtered[0].Frame.Timestamp.Unix()
	maxLen := len(filtered[0].ChunkText)
	for _, r := range filtered[1:] {
		ts := r.Frame.Timestamp.Unix()
		if ts < minTime {
			minTime = ts
		}
		if ts > maxTime {
			maxTime = ts
		}
		if len(r.ChunkText) > maxLen {
			maxLen = len(r.ChunkText)
		}
	}
	timeRange := float32(maxTime - minTime)
	if timeRange < 1 {
		timeRange = 1
	}
	if maxLen < 1 {
		maxLen = 1
	}

	type scored struct {
		score  float32
		result store.SemanticResult
	}
	combined := make([]scored, len(filtered))
	for i, r := range filtered {
		recencyNormalized := float32(r.Frame.Timestamp.Unix()-minTime) / timeRange
		recencyBoost := recencyNormalized * cfg.RecencyWeight
		lengthNormalized := float32(len(r.ChunkText)) / float32(maxLen)
		lengthBoost := lengthNormalized * cfg.LengthWeight
		combined[i] = scored{score: r.SimilarityScore + recencyBoost + lengthBoost, result: r}
	}

	sort.SliceStable(combined, func(i, j int) bool { return combined[i].score > combined[j].score })

	seenFrames := make(map[int64]bool)
	out := make([]store.SemanticResult, 0, cfg.TopK)
	for _, c := range combined {
		if seenFrames[c.result.Frame.ID] {
			continue
		}
		seenFrames[c.result.Frame.ID] = true
		c.result.SimilarityScore = c.score
		out = append(out, c.result)
		if len(out) >= cfg.TopK {
			break
		}
	}
	return out
}

// BoostKeywordMatches boosts each result's score in place proportional
// to the fraction of query keywords (words longer than 2 characters)
// found in its chunk text, case-insensitively. Applied before Rerank,
// never folded into it, matching the original two-stage pipeline.
func BoostKeywordMatches(results []store.SemanticResult, query string, boostFactor float32) {
	var keywords []string
	for _, w := range strings.Fields(query) {
		if len(w) > 2 {
			keywords = append(keywords, strings.ToLower(w))
		}
	}
	if len(keywords) == 0 {
		return
	}

	for i := range results {
		textLower := strings.ToLower(results[i].ChunkText)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) {
				matches++
			}
		}
		if matches > 0 {
			boost := (float32(matches) / float32(len(keywords))) * boostFactor
			results[i].SimilarityScore += boost
		}
	}
}
