package storage

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screensearch/internal/capture"
	goimage "screensearch/internal/image"
	"screensearch/internal/ocr"
	"screensearch/internal/store"
)

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

func solidImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	return img
}

func TestWriteOnePersistsFileAndFrameRow(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	w := New(Config{CapturesDir: dir, MaxWidth: 1920, Format: goimage.FormatJPEG, Quality: 80}, s)

	result := ocr.Result{
		Frame: capture.Frame{
			Monitor:   capture.Monitor{Index: 0, Name: "primary"},
			Image:     solidImage(),
			Context:   capture.WindowContext{Title: "Editor", Process: "code.exe"},
			Timestamp: time.Now(),
		},
		Regions: []ocr.TextRegion{{Text: "hello world", Confidence: 0.95}},
	}

	require.NoError(t, w.writeOne(context.Background(), result))

	frames, err := s.GetFramesInRange(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour), store.FrameFilter{}, store.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "Editor", *frames[0].ActiveWindow)

	_, statErr := os.Stat(frames[0].FilePath)
	require.NoError(t, statErr, "encoded frame file must exist on disk at the recorded path")

	ocrRows, err := s.GetOcrTextForFrame(context.Background(), frames[0].ID)
	require.NoError(t, err)
	require.Len(t, ocrRows, 1)
	require.Equal(t, "hello world", ocrRows[0].Text)
}

func TestRunDrainsChannelUntilClosed(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	w := New(Config{CapturesDir: dir}, s)

	in := make(chan ocr.Result, 2)
	in <- ocr.Result{Frame: capture.Frame{Monitor: capture.Monitor{Index: 0}, Image: solidImage(), Timestamp: time.Now()}}
	in <- ocr.Result{Frame: capture.Frame{Monitor: capture.Monitor{Index: 1}, Image: solidImage(), Timestamp: time.Now()}}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Run(ctx, in)

	frames, err := s.GetFramesInRange(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour), store.FrameFilter{}, store.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, frames, 2)
}
