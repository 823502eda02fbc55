package store

import (
	"context"
	"database/sql"

	"screensearch/internal/apperr"
)

func scanAnalysisTask(row interface{ Scan(dest ...any) error }) (AnalysisTask, error) {
	var t AnalysisTask
	var workerID, description, visibleText, activityType, appHint, errorMessage sql.NullString
	var claimedAt sql.NullTime
	var confidence sql.NullFloat64
	var analysisTimeMs sql.NullInt64
	if err := row.Scan(&t.ID, &t.FrameID, &workerID, &claimedAt, &t.State, &description, &visibleText,
		&activityType, &appHint, &confidence, &analysisTimeMs, &errorMessage); err != nil {
		return AnalysisTask{}, err
	}
	if workerID.Valid {
		t.WorkerID = &workerID.String
	}
	if claimedAt.Valid {
		t.ClaimedAt = &claimedAt.Time
	}
	if description.Valid {
		t.Description = &description.String
	}
	if visibleText.Valid {
		t.VisibleTextJSON = &visibleText.String
	}
	if activityType.Valid {
		t.ActivityType = &activityType.String
	}
	if appHint.Valid {
		t.AppHint = &appHint.String
	}
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	if analysisTimeMs.Valid {
		t.AnalysisTimeMs = &analysisTimeMs.Int64
	}
	if errorMessage.Valid {
		t.ErrorMessage = &errorMessage.String
	}
	return t, nil
}

const analysisTaskColumns = `id, frame_id, worker_id, claimed_at, state, description,
	visible_text_json, activity_type, app_hint, confidence, analysis_time_ms, error_message`

// EnqueueAnalysisTask creates a pending vision-analysis task for a frame.
func (s *Store) EnqueueAnalysisTask(ctx context.Context, frameID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_tasks (frame_id, state) VALUES (?, ?)
	`, frameID, AnalysisPending)
	if err != nil {
		return 0, apperr.Storage(err, "enqueue analysis task for frame %d", frameID)
	}
	return res.LastInsertId()
}

// ClaimNextAnalysisTask atomically claims one pending task for workerID,
// marking it in-progress. The UPDATE...WHERE state='pending' guard and
// SQLite's single-writer serialization make this safe under concurrent
// callers: only one claim can touch a given row (P10). Returns nil, nil
// if no pending task is available.
func (s *Store) ClaimNextAnalysisTask(ctx context.Context, workerID string) (*AnalysisTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Storage(err, "begin claim")
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM analysis_tasks WHERE state = ? ORDER BY id ASC LIMIT 1
	`, AnalysisPending).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "find pending analysis task")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE analysis_tasks SET state = ?, worker_id = ?, claimed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, AnalysisInProgress, workerID, id, AnalysisPending)
	if err != nil {
		return nil, apperr.Storage(err, "claim analysis task %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Storage(err, "claim analysis task %d", id)
	}
	if n == 0 {
		// Lost the race to another claimant between SELECT and UPDATE.
		return nil, nil
	}

	row := tx.QueryRowContext(ctx, `SELECT `+analysisTaskColumns+` FROM analysis_tasks WHERE id = ?`, id)
	task, err := scanAnalysisTask(row)
	if err != nil {
		return nil, apperr.Storage(err, "read claimed analysis task %d", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Storage(err, "commit claim %d", id)
	}
	return &task, nil
}

// CompleteAnalysisTask records a successful vision analysis result.
func (s *Store) CompleteAnalysisTask(ctx context.Context, id int64, description, visibleTextJSON, activityType, appHint string, confidence float64, analysisTimeMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks SET state = ?, description = ?, visible_text_json = ?,
			activity_type = ?, app_hint = ?, confidence = ?, analysis_time_ms = ?, error_message = NULL
		WHERE id = ?
	`, AnalysisDone, description, visibleTextJSON, activityType, appHint, confidence, analysisTimeMs, id)
	if err != nil {
		return apperr.Storage(err, "complete analysis task %d", id)
	}
	return nil
}

// FailAnalysisTask records a failed vision analysis attempt.
func (s *Store) FailAnalysisTask(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks SET state = ?, error_message = ? WHERE id = ?
	`, AnalysisFailed, errMsg, id)
	if err != nil {
		return apperr.Storage(err, "fail analysis task %d", id)
	}
	return nil
}

// GetAnalysisTask retrieves one task by id.
func (s *Store) GetAnalysisTask(ctx context.Context, id int64) (*AnalysisTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisTaskColumns+` FROM analysis_tasks WHERE id = ?`, id)
	t, err := scanAnalysisTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "get analysis task %d", id)
	}
	return &t, nil
}

// GetAnalysisTaskForFrame retrieves the most recent task for a frame.
func (s *Store) GetAnalysisTaskForFrame(ctx context.Context, frameID int64) (*AnalysisTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisTaskColumns+` FROM analysis_tasks WHERE frame_id = ? ORDER BY id DESC LIMIT 1
	`, frameID)
	t, err := scanAnalysisTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "get analysis task for frame %d", frameID)
	}
	return &t, nil
}
