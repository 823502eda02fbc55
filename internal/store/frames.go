package store

import (
	"context"
	"database/sql"
	"time"

	"screensearch/internal/apperr"
)

const frameColumns = `id, chunk_id, timestamp, monitor_index, device_name, file_path,
	active_window, active_process, browser_url, width, height, focused, created_at`

func scanFrame(row interface {
	Scan(dest ...any) error
}) (Frame, error) {
	var f Frame
	var chunkID sql.NullInt64
	var activeWindow, activeProcess, browserURL sql.NullString
	if err := row.Scan(&f.ID, &chunkID, &f.Timestamp, &f.MonitorIndex, &f.DeviceName, &f.FilePath,
		&activeWindow, &activeProcess, &browserURL, &f.Width, &f.Height, &f.Focused, &f.CreatedAt); err != nil {
		return Frame{}, err
	}
	if chunkID.Valid {
		f.ChunkID = &chunkID.Int64
	}
	if activeWindow.Valid {
		f.ActiveWindow = &activeWindow.String
	}
	if activeProcess.Valid {
		f.ActiveProcess = &activeProcess.String
	}
	if browserURL.Valid {
		f.BrowserURL = &browserURL.String
	}
	return f, nil
}

// InsertFrame inserts a new Frame row and returns its id.
func (s *Store) InsertFrame(ctx context.Context, f NewFrame) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO frames (chunk_id, timestamp, monitor_index, device_name, file_path,
			active_window, active_process, browser_url, width, height, focused)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ChunkID, f.Timestamp, f.MonitorIndex, f.DeviceName, f.FilePath,
		f.ActiveWindow, f.ActiveProcess, f.BrowserURL, f.Width, f.Height, f.Focused)
	if err != nil {
		return 0, apperr.Storage(err, "insert frame")
	}
	return res.LastInsertId()
}

// GetFrame retrieves a single frame by id.
func (s *Store) GetFrame(ctx context.Context, id int64) (*Frame, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+frameColumns+` FROM frames WHERE id = ?`, id)
	f, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "get frame %d", id)
	}
	return &f, nil
}

// GetFramesInRange lists frames whose timestamp falls in [start, end],
// narrowed by filter (fields ANDed), newest first, paginated.
func (s *Store) GetFramesInRange(ctx context.Context, start, end time.Time, filter FrameFilter, page Pagination) ([]Frame, error) {
	query := `SELECT ` + frameColumns + ` FROM frames WHERE timestamp >= ? AND timestamp <= ?`
	args := []any{start, end}

	if filter.AppName != nil {
		query += " AND active_process = ?"
		args = append(args, *filter.AppName)
	}
	if filter.DeviceName != nil {
		query += " AND device_name = ?"
		args = append(args, *filter.DeviceName)
	}
	if filter.MonitorIndex != nil {
		query += " AND monitor_index = ?"
		args = append(args, *filter.MonitorIndex)
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err, "get frames in range")
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan frame")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFramesInRange counts frames whose timestamp falls in [start, end].
func (s *Store) CountFramesInRange(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames WHERE timestamp >= ? AND timestamp <= ?`, start, end).Scan(&count)
	if err != nil {
		return 0, apperr.Storage(err, "count frames in range")
	}
	return count, nil
}

// DeleteOldFrames deletes all frames with timestamp < before, returning
// the number of rows removed. Cascades to OcrText, Embedding, and
// FrameTag rows via foreign keys (P2, P7).
func (s *Store) DeleteOldFrames(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM frames WHERE timestamp < ?`, before)
	if err != nil {
		return 0, apperr.Storage(err, "delete old frames")
	}
	return res.RowsAffected()
}

// GetFramesWithoutEmbeddings returns up to limit frames that have no
// Embedding rows yet, oldest first (so the worker catches up in order).
func (s *Store) GetFramesWithoutEmbeddings(ctx context.Context, limit int64) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frameColumns+` FROM frames f
		WHERE NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.frame_id = f.id)
		ORDER BY f.timestamp ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperr.Storage(err, "get frames without embeddings")
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan frame")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertOcrText inserts an OcrText row and returns its id.
func (s *Store) InsertOcrText(ctx context.Context, o NewOcrText) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ocr_text (frame_id, text, text_json, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.FrameID, o.Text, o.TextJSON, o.X, o.Y, o.Width, o.Height, o.Confidence)
	if err != nil {
		return 0, apperr.Storage(err, "insert ocr text")
	}
	return res.LastInsertId()
}

// GetOcrTextForFrame returns all OCR regions for a frame, ordered by
// position (top-to-bottom, left-to-right).
func (s *Store) GetOcrTextForFrame(ctx context.Context, frameID int64) ([]OcrText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, frame_id, text, text_json, x, y, width, height, confidence, created_at
		FROM ocr_text WHERE frame_id = ? ORDER BY y ASC, x ASC
	`, frameID)
	if err != nil {
		return nil, apperr.Storage(err, "get ocr text for frame %d", frameID)
	}
	defer rows.Close()

	var out []OcrText
	for rows.Next() {
		var o OcrText
		var textJSON sql.NullString
		if err := rows.Scan(&o.ID, &o.FrameID, &o.Text, &textJSON, &o.X, &o.Y, &o.Width, &o.Height, &o.Confidence, &o.CreatedAt); err != nil {
			return nil, apperr.Storage(err, "scan ocr text")
		}
		if textJSON.Valid {
			o.TextJSON = &textJSON.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertFrameWithOcr atomically inserts a frame and all of its OCR
// regions in one transaction, as required by C4 (Storage Writer).
func (s *Store) InsertFrameWithOcr(ctx context.Context, f NewFrame, regions []NewOcrText) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Storage(err, "begin frame insert transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO frames (chunk_id, timestamp, monitor_index, device_name, file_path,
			active_window, active_process, browser_url, width, height, focused)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ChunkID, f.Timestamp, f.MonitorIndex, f.DeviceName, f.FilePath,
		f.ActiveWindow, f.ActiveProcess, f.BrowserURL, f.Width, f.Height, f.Focused)
	if err != nil {
		return 0, apperr.Storage(err, "insert frame")
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage(err, "read frame id")
	}

	for _, o := range regions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ocr_text (frame_id, text, text_json, x, y, width, height, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, frameID, o.Text, o.TextJSON, o.X, o.Y, o.Width, o.Height, o.Confidence); err != nil {
			return 0, apperr.Storage(err, "insert ocr region")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Storage(err, "commit frame insert")
	}
	return frameID, nil
}
