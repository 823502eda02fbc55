package vision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"screensearch/internal/store"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Analyze(ctx context.Context, imagePath, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
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

func TestProcessNextCompletesClaimedTask(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: time.Now(), DeviceName: "d", FilePath: "/tmp/a.jpg"})
	require.NoError(t, err)
	taskID, err := s.EnqueueAnalysisTask(ctx, frameID)
	require.NoError(t, err)

	w := New(s, "worker-1")
	w.client = &fakeClient{response: "a browser window showing search results"}

	processed, err := w.processNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	task, err := s.GetAnalysisTask(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, store.AnalysisDone, task.State)
	require.Equal(t, "a browser window showing search results", *task.Description)
}

func TestProcessNextReturnsFalseWhenQueueEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := New(s, "worker-1")
	w.client = &fakeClient{}

	processed, err := w.processNext(ctx)
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessNextFailsTaskOnClientError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: time.Now(), DeviceName: "d", FilePath: "/tmp/a.jpg"})
	require.NoError(t, err)
	taskID, err := s.EnqueueAnalysisTask(ctx, frameID)
	require.NoError(t, err)

	w := New(s, "worker-1")
	w.client = &fakeClient{err: context.DeadlineExceeded}

	processed, err := w.processNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	task, err := s.GetAnalysisTask(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, store.AnalysisFailed, task.State)
}

func TestBuildPromptIncludesWindowAndOcrContext(t *testing.T) {
	title := "Inbox - Mail"
	process := "mail.exe"
	f := store.Frame{ActiveWindow: &title, ActiveProcess: &process}
	ocrRows := []store.OcrText{{Text: "Unread: 3"}}

	prompt := buildPrompt(f, ocrRows)
	require.Contains(t, prompt, "Inbox - Mail")
	require.Contains(t, prompt, "mail.exe")
	require.Contains(t, prompt, "Unread: 3")
}
