package retrieval

import (
	"testing"
	"time"

	"screensearch/internal/store"
)

func makeResult(id int64, score float32, text string) store.SemanticResult {
	return store.SemanticResult{
		Frame:           store.Frame{ID: id, Timestamp: time.Now()},
		ChunkText:       text,
		SimilarityScore: score,
	}
}

func TestRerankEmpty(t *testing.T) {
	out := Rerank(nil, DefaultRerankConfig())
	if len(out) != 0 {
		t.Fatalf("expected no results, got %d", len(out))
	}
}

func TestRerankSortsByScore(t *testing.T) {
	results := []store.SemanticResult{
		makeResult(1, 0.5, "low score"),
		makeResult(2, 0.9, "high score"),
		makeResult(3, 0.7, "medium score"),
	}
	cfg := DefaultRerankConfig()
	cfg.TopK = 10
	out := Rerank(results, cfg)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].SimilarityScore < out[1].SimilarityScore {
		t.Errorf("expected descending order, got %v then %v", out[0].SimilarityScore, out[1].SimilarityScore)
	}
}

func TestRerankDedupesFrames(t *testing.T) {
	results := []store.SemanticResult{
		makeResult(1, 0.9, "first from frame 1"),
		makeResult(1, 0.8, "second from frame 1"),
		makeResult(2, 0.7, "from frame 2"),
	}
	out := Rerank(results, DefaultRerankConfig())
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped results (one per frame), got %d", len(out))
	}
}

func TestBoostKeywordMatchesBoostsContainingChunks(t *testing.T) {
	results := []store.SemanticResult{
		makeResult(1, 0.5, "a document about budgets and spreadsheets"),
		makeResult(2, 0.5, "completely unrelated content"),
	}
	BoostKeywordMatches(results, "budget spreadsheet", 0.3)

	if results[0].SimilarityScore <= 0.5 {
		t.Errorf("expected matching chunk to be boosted above base score, got %v", results[0].SimilarityScore)
	}
	if results[1].SimilarityScore != 0.5 {
		t.Errorf("expected non-matching chunk to be untouched, got %v", results[1].SimilarityScore)
	}
}

func TestBoostKeywordMatchesIgnoresShortWords(t *testing.T) {
	results := []store.SemanticResult{makeResult(1, 0.5, "an a it is at")}
	BoostKeywordMatches(results, "a it is", 0.5)
	if results[0].SimilarityScore != 0.5 {
		t.Errorf("expected no boost from words of length <= 2, got %v", results[0].SimilarityScore)
	}
}
