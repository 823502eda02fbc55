package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"screensearch/internal/apperr"
)

// GetSettings reads the singleton settings row (id=1), which migration
// 002_settings_table guarantees always exists.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var st Settings
	var monitorsJSON, excludedJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, capture_interval, monitors, excluded_apps, is_paused, retention_days,
			vision_enabled, vision_endpoint, vision_model, vision_provider, vision_api_key, updated_at
		FROM settings WHERE id = 1
	`).Scan(&st.ID, &st.CaptureInterval, &monitorsJSON, &excludedJSON, &st.IsPaused, &st.RetentionDays,
		&st.VisionEnabled, &st.VisionEndpoint, &st.VisionModel, &st.VisionProvider, &st.VisionAPIKey, &st.UpdatedAt)
	if err != nil {
		return Settings{}, apperr.Storage(err, "get settings")
	}
	if err := json.Unmarshal([]byte(monitorsJSON), &st.Monitors); err != nil {
		return Settings{}, apperr.Storage(err, "decode settings.monitors")
	}
	if err := json.Unmarshal([]byte(excludedJSON), &st.ExcludedApps); err != nil {
		return Settings{}, apperr.Storage(err, "decode settings.excluded_apps")
	}
	return st, nil
}

// UpdateSettings overwrites the singleton settings row and returns the
// resulting state (P9: there is exactly one settings row, and every
// write lands on it by virtue of the CHECK(id=1) constraint).
func (s *Store) UpdateSettings(ctx context.Context, in UpdateSettings) (Settings, error) {
	monitorsJSON, err := json.Marshal(in.Monitors)
	if err != nil {
		return Settings{}, apperr.InvalidRequest("encode monitors: %v", err)
	}
	excludedJSON, err := json.Marshal(in.ExcludedApps)
	if err != nil {
		return Settings{}, apperr.InvalidRequest("encode excluded_apps: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE settings SET
			capture_interval = ?, monitors = ?, excluded_apps = ?, is_paused = ?, retention_days = ?,
			vision_enabled = ?, vision_endpoint = ?, vision_model = ?, vision_provider = ?, vision_api_key = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, in.CaptureInterval, string(monitorsJSON), string(excludedJSON), in.IsPaused, in.RetentionDays,
		in.VisionEnabled, in.VisionEndpoint, in.VisionModel, in.VisionProvider, in.VisionAPIKey)
	if err != nil {
		return Settings{}, apperr.Storage(err, "update settings")
	}
	return s.GetSettings(ctx)
}

// SetMetadata upserts a key/value pair in the free-form metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return apperr.Storage(err, "set metadata %q", key)
	}
	return nil
}

// GetMetadata reads a metadata value, returning ("", false) if absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Storage(err, "get metadata %q", key)
	}
	return value, true, nil
}

// GetStatistics summarizes the store's contents.
func (s *Store) GetStatistics(ctx context.Context) (Statistics, error) {
	var st Statistics

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&st.FrameCount); err != nil {
		return Statistics{}, apperr.Storage(err, "count frames")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ocr_text`).Scan(&st.OcrCount); err != nil {
		return Statistics{}, apperr.Storage(err, "count ocr text")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&st.TagCount); err != nil {
		return Statistics{}, apperr.Storage(err, "count tags")
	}

	var oldest, newest sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM frames`).Scan(&oldest, &newest); err != nil {
		return Statistics{}, apperr.Storage(err, "frame time range")
	}
	if oldest.Valid {
		st.OldestFrame = &oldest.Time
	}
	if newest.Valid {
		st.NewestFrame = &newest.Time
	}

	return st, nil
}
