package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func TestSweepDeletesOnlyFramesPastRetention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	oldID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: now.AddDate(0, 0, -40), DeviceName: "d", FilePath: "/a.jpg"})
	require.NoError(t, err)
	newID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: now, DeviceName: "d", FilePath: "/b.jpg"})
	require.NoError(t, err)

	sweeper := New(Config{RetentionDays: 30, SweepInterval: time.Hour}, s)
	sweeper.sweep(ctx)

	gone, err := s.GetFrame(ctx, oldID)
	require.NoError(t, err)
	require.Nil(t, gone)

	kept, err := s.GetFrame(ctx, newID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestSweepUsesLiveSettingsOverConfigDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	_, err := s.UpdateSettings(ctx, store.UpdateSettings{CaptureInterval: 5, RetentionDays: 1})
	require.NoError(t, err)

	frameID, err := s.InsertFrame(ctx, store.NewFrame{Timestamp: now.AddDate(0, 0, -2), DeviceName: "d", FilePath: "/a.jpg"})
	require.NoError(t, err)

	sweeper := New(Config{RetentionDays: 30, SweepInterval: time.Hour}, s)
	sweeper.sweep(ctx)

	gone, err := s.GetFrame(ctx, frameID)
	require.NoError(t, err)
	require.Nil(t, gone, "the live 1-day setting should override the 30-day startup config")
}
