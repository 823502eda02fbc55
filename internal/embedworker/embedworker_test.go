package embedworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screensearch/internal/store"
)

type fakeProvider struct{ calls int }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{float32(len(text)), 0, 0}, nil
}
func (f *fakeProvider) Close() error { return nil }

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

func TestTickEmbedsFramesWithoutEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SetMetadata(ctx, embeddingsEnabledKey, "true"))
	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: time.Now(), DeviceName: "d", FilePath: "/tmp/a.jpg"})
	require.NoError(t, err)
	_, err = s.InsertOcrText(ctx, store.NewOcrText{FrameID: frameID, Text: "quarterly revenue numbers", Confidence: 0.9})
	require.NoError(t, err)

	provider := &fakeProvider{}
	w := New(Config{BatchSize: 10, Interval: time.Hour, MaxChunkTokens: 256, ChunkOverlap: 0}, s, provider)

	w.tick(ctx)

	require.Greater(t, provider.calls, 0, "expected the provider to be invoked for the pending frame")

	rows, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}

func TestTickSkipsWhenDisabledViaMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SetMetadata(ctx, embeddingsEnabledKey, "false"))

	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: time.Now(), DeviceName: "d", FilePath: "/tmp/a.jpg"})
	require.NoError(t, err)
	_, err = s.InsertOcrText(ctx, store.NewOcrText{FrameID: frameID, Text: "some text", Confidence: 0.9})
	require.NoError(t, err)

	provider := &fakeProvider{}
	w := New(Config{BatchSize: 10, Interval: time.Hour}, s, provider)
	w.tick(ctx)

	require.Equal(t, 0, provider.calls, "a disabled gate must prevent any embedding calls")
}

func TestTickNoopsWithNilProvider(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := New(Config{BatchSize: 10, Interval: time.Hour}, s, nil)
	w.tick(ctx) // must not panic
}
