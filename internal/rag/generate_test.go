package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screensearch/internal/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) Close() error { return nil }

type fakeChat struct {
	lastUserPrompt string
	response       string
}

func (f *fakeChat) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.lastUserPrompt = userPrompt
	return f.response, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig(":memory:")
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	s, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAskReturnsCannedAnswerWhenNoContextFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	chat := &fakeChat{response: "should not be used"}
	a := New(DefaultConfig(), s, fakeEmbedder{}, chat)

	answer, err := a.Ask(ctx, "what was I working on")
	require.NoError(t, err)
	require.Empty(t, answer.Sources)
	require.Contains(t, answer.Answer, "couldn't find")
}

func TestAskBuildsContextFromHybridSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: time.Now(), DeviceName: "d", FilePath: "/tmp/a.jpg"})
	require.NoError(t, err)
	_, err = s.InsertOcrText(ctx, store.NewOcrText{FrameID: frameID, Text: "quarterly budget spreadsheet", Confidence: 0.9})
	require.NoError(t, err)
	_, err = s.InsertEmbedding(ctx, frameID, "quarterly budget spreadsheet", 0, []float32{1, 0, 0})
	require.NoError(t, err)

	chat := &fakeChat{response: "You were reviewing the quarterly budget."}
	a := New(DefaultConfig(), s, fakeEmbedder{}, chat)

	answer, err := a.Ask(ctx, "budget")
	require.NoError(t, err)
	require.Equal(t, "You were reviewing the quarterly budget.", answer.Answer)
	require.Contains(t, answer.Sources, frameID)
	require.Contains(t, chat.lastUserPrompt, "quarterly budget spreadsheet")
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := New(DefaultConfig(), s, fakeEmbedder{}, &fakeChat{})

	_, err := a.Ask(ctx, "   ")
	require.Error(t, err)
}
