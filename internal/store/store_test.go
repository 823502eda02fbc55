package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	cfg := DefaultConfig(":memory:")
	cfg.MaxOpenConns = 1 // :memory: is per-connection; pin to one conn so schema persists
	cfg.MaxIdleConns = 1
	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertFrame(t *testing.T, s *Store, ts time.Time) int64 {
	t.Helper()
	id, err := s.InsertFrame(context.Background(), NewFrame{
		Timestamp:    ts,
		MonitorIndex: 0,
		DeviceName:   "test-device",
		FilePath:     "/tmp/frame.jpg",
		Width:        1920,
		Height:       1080,
	})
	require.NoError(t, err)
	return id
}

// TestFTSStaysInSyncWithOcrText backs P1 for inserts: a newly inserted
// ocr_text row is found through ocr_text_fts, and an absent term finds
// nothing.
func TestFTSStaysInSyncWithOcrText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID := insertFrame(t, s, time.Now())

	_, err := s.InsertOcrText(ctx, NewOcrText{FrameID: frameID, Text: "quarterly revenue report", Confidence: 0.9})
	require.NoError(t, err)

	results, err := s.SearchOcrText(ctx, "revenue", FrameFilter{}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, frameID, results[0].Frame.ID)

	noResults, err := s.SearchOcrText(ctx, "nonexistentterm", FrameFilter{}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, noResults)
}

// TestCascadeDeleteRemovesDependents backs P2: deleting a frame removes
// its ocr_text, embeddings, and frame_tags rows.
func TestCascadeDeleteRemovesDependents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID := insertFrame(t, s, time.Now())

	_, err := s.InsertOcrText(ctx, NewOcrText{FrameID: frameID, Text: "ephemeral note", Confidence: 0.5})
	require.NoError(t, err)
	_, err = s.InsertEmbedding(ctx, frameID, "ephemeral note", 0, []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)
	tagID, err := s.CreateTag(ctx, NewTag{Name: "work"})
	require.NoError(t, err)
	require.NoError(t, s.AddTagToFrame(ctx, frameID, tagID))

	_, err = s.DeleteOldFrames(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)

	ocr, err := s.GetOcrTextForFrame(ctx, frameID)
	require.NoError(t, err)
	require.Empty(t, ocr)

	rows, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	tags, err := s.GetTagsForFrame(ctx, frameID)
	require.NoError(t, err)
	require.Empty(t, tags)
}

// TestEmbeddingBatchIsAllOrNothing backs P4: a frame's embedding batch
// that InsertEmbeddingsForFrame rejects leaves no rows for that frame.
func TestEmbeddingBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID := insertFrame(t, s, time.Now())

	err := s.InsertEmbeddingsForFrame(ctx, frameID,
		[]string{"chunk one", "chunk two"},
		[][]float32{{0.1, 0.2}}, // mismatched length triggers rejection before any insert
	)
	require.Error(t, err)

	rows, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	require.Empty(t, rows, "a rejected batch must leave zero rows for the frame")
}

// TestBulkTagLookupReturnsPerFrameTags backs P8: GetTagsForFrames
// returns the correct tag set for each of several frame ids in one
// call. The number of queries it issues is not measured here.
func TestBulkTagLookupReturnsPerFrameTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	frameA := insertFrame(t, s, time.Now())
	frameB := insertFrame(t, s, time.Now())
	tagWork, err := s.CreateTag(ctx, NewTag{Name: "work"})
	require.NoError(t, err)
	tagHome, err := s.CreateTag(ctx, NewTag{Name: "home"})
	require.NoError(t, err)

	require.NoError(t, s.AddTagToFrame(ctx, frameA, tagWork))
	require.NoError(t, s.AddTagToFrame(ctx, frameB, tagHome))

	byFrame, err := s.GetTagsForFrames(ctx, []int64{frameA, frameB})
	require.NoError(t, err)
	require.Len(t, byFrame[frameA], 1)
	require.Equal(t, "work", byFrame[frameA][0].Name)
	require.Len(t, byFrame[frameB], 1)
	require.Equal(t, "home", byFrame[frameB][0].Name)
}

// TestSettingsIsASingleton backs P9: only one settings row ever exists,
// and updates always land on it regardless of how many times it's read.
func TestSettingsIsASingleton(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	initial, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), initial.ID)

	updated, err := s.UpdateSettings(ctx, UpdateSettings{
		CaptureInterval: 10,
		Monitors:        []int{0, 1},
		ExcludedApps:    []string{"1Password"},
		RetentionDays:   14,
		VisionProvider:  "ollama",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.ID)
	require.Equal(t, 10, updated.CaptureInterval)

	reread, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, reread.CaptureInterval)
	require.Equal(t, 14, reread.RetentionDays)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&count))
	require.Equal(t, 1, count)
}

// TestAnalysisTaskClaimIsAtomic backs P10: once a task is claimed, a
// second claim attempt must not return the same task, and an empty
// queue returns (nil, nil) rather than an error.
func TestAnalysisTaskClaimIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID := insertFrame(t, s, time.Now())

	taskID, err := s.EnqueueAnalysisTask(ctx, frameID)
	require.NoError(t, err)

	claimed, err := s.ClaimNextAnalysisTask(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, taskID, claimed.ID)
	require.Equal(t, AnalysisInProgress, claimed.State)
	require.NotNil(t, claimed.WorkerID)
	require.Equal(t, "worker-1", *claimed.WorkerID)

	second, err := s.ClaimNextAnalysisTask(ctx, "worker-2")
	require.NoError(t, err)
	require.Nil(t, second, "no pending tasks remain; claim must report none available")
}

// TestDeleteOldFramesRespectsCutoff backs P7: only frames strictly
// older than the cutoff are removed.
func TestDeleteOldFramesRespectsCutoff(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	oldFrame := insertFrame(t, s, now.Add(-48*time.Hour))
	newFrame := insertFrame(t, s, now)

	cutoff := now.Add(-24 * time.Hour)
	n, err := s.DeleteOldFrames(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	remaining, err := s.GetFrame(ctx, newFrame)
	require.NoError(t, err)
	require.NotNil(t, remaining)

	gone, err := s.GetFrame(ctx, oldFrame)
	require.NoError(t, err)
	require.Nil(t, gone)
}

// TestHybridSearchCombinesBothScores backs P6: when a chunk matches on
// both semantic and lexical dimensions, the two matches merge into one
// result whose fused score is at least the weighted semantic score
// alone (alpha 0.5 times a cosine of 1).
func TestHybridSearchCombinesBothScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID := insertFrame(t, s, time.Now())

	_, err := s.InsertOcrText(ctx, NewOcrText{FrameID: frameID, Text: "budget spreadsheet", Confidence: 0.8})
	require.NoError(t, err)
	_, err = s.InsertEmbedding(ctx, frameID, "budget spreadsheet", 0, []float32{1, 0, 0})
	require.NoError(t, err)

	results, err := s.HybridSearch(ctx, "budget", []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Len(t, results, 1)
	require.GreaterOrEqual(t, results[0].SimilarityScore, float32(0.5))
}
