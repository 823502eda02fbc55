// Package storage implements C4: the sink at the end of the
// capture/OCR pipeline. It downscales and encodes each surviving
// frame, writes it to disk under a date-sharded layout, and commits
// the frame plus its OCR regions to the store in one transaction.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	goimage "screensearch/internal/image"
	"screensearch/internal/ocr"
	"screensearch/internal/store"
)

// Config controls the on-disk layout and encoding quality. See
// config.StorageConfig for the on-disk shape this is built from.
type Config struct {
	CapturesDir string
	MaxWidth    int
	Format      goimage.Format
	Quality     int
}

// Writer consumes ocr.Results and persists them.
type Writer struct {
	cfg       Config
	processor *goimage.DefaultProcessor
	store     *store.Store
}

// New builds a Writer. The captures directory is created lazily on
// first write, not at construction, so tests can point at a path that
// doesn't exist yet without touching the filesystem up front.
func New(cfg Config, s *store.Store) *Writer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1920
	}
	if cfg.Format == "" {
		cfg.Format = goimage.FormatJPEG
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 80
	}
	proc := goimage.NewProcessor(goimage.ProcessorConfig{
		MaxWidth:            cfg.MaxWidth,
		MaxHeight:           cfg.MaxWidth, // screenshots are rarely taller than wide; width governs scaling
		OutputFormat:        cfg.Format,
		Quality:             cfg.Quality,
		PreserveAspectRatio: true,
	})
	return &Writer{cfg: cfg, processor: proc, store: s}
}

// Run drains in until it closes or ctx is cancelled, writing each
// result as it arrives.
func (w *Writer) Run(ctx context.Context, in <-chan ocr.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-in:
			if !ok {
				return
			}
			if err := w.writeOne(ctx, result); err != nil {
				log.Error().Err(err).Int("monitor", result.Frame.Monitor.Index).Msg("storage: failed to persist frame")
			}
		}
	}
}

// writeOne encodes the frame image, writes it to disk, then inserts
// the frame row and its OCR regions in a single store transaction, so
// the frame row and its OCR rows are committed together or not at all
// and a frame row is only ever written after its file. A failure or
// crash after the file write and before the commit can leave a file
// with no row.
func (w *Writer) writeOne(ctx context.Context, result ocr.Result) error {
	processed, err := w.processor.ProcessImage(ctx, result.Frame.Image)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	path, err := w.writeFile(result.Frame.Timestamp, result.Frame.Monitor.Index, processed.Data)
	if err != nil {
		return fmt.Errorf("write frame file: %w", err)
	}

	regions := make([]store.NewOcrText, 0, len(result.Regions))
	for _, r := range result.Regions {
		regions = append(regions, store.NewOcrText{
			Text:       r.Text,
			X:          r.X,
			Y:          r.Y,
			Width:      r.Width,
			Height:     r.Height,
			Confidence: r.Confidence,
		})
	}

	var activeWindow, activeProcess, browserURL *string
	if result.Frame.Context.Title != "" {
		activeWindow = &result.Frame.Context.Title
	}
	if result.Frame.Context.Process != "" {
		activeProcess = &result.Frame.Context.Process
	}
	if result.Frame.Context.BrowserURL != "" {
		browserURL = &result.Frame.Context.BrowserURL
	}

	_, err = w.store.InsertFrameWithOcr(ctx, store.NewFrame{
		Timestamp:     result.Frame.Timestamp,
		MonitorIndex:  result.Frame.Monitor.Index,
		DeviceName:    result.Frame.Monitor.Name,
		FilePath:      path,
		ActiveWindow:  activeWindow,
		ActiveProcess: activeProcess,
		BrowserURL:    browserURL,
		Width:         processed.Width,
		Height:        processed.Height,
		Focused:       true,
	}, regions)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	return nil
}

// writeFile lays frames out as <capturesDir>/<YYYY-MM-DD>/<unixnano>_mon<idx>.<ext>,
// matching the date-sharded directory convention screenshots are
// typically archived under so a single directory never accumulates an
// unbounded number of files.
func (w *Writer) writeFile(ts time.Time, monitorIndex int, data []byte) (string, error) {
	dayDir := filepath.Join(w.cfg.CapturesDir, ts.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", err
	}

	ext := "jpg"
	if w.cfg.Format == goimage.FormatPNG {
		ext = "png"
	}
	name := fmt.Sprintf("%d_mon%d.%s", ts.UnixNano(), monitorIndex, ext)
	path := filepath.Join(dayDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
