package store

import (
	"context"
	"database/sql"
	"strings"

	"screensearch/internal/apperr"
)

func scanTag(row interface{ Scan(dest ...any) error }) (Tag, error) {
	var t Tag
	var description, color sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &description, &color, &t.CreatedAt); err != nil {
		return Tag{}, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if color.Valid {
		t.Color = &color.String
	}
	return t, nil
}

// CreateTag inserts a new Tag and returns its id.
func (s *Store) CreateTag(ctx context.Context, t NewTag) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (tag_name, description, color) VALUES (?, ?, ?)
	`, t.Name, t.Description, t.Color)
	if err != nil {
		return 0, apperr.Storage(err, "create tag %q", t.Name)
	}
	return res.LastInsertId()
}

// GetTag retrieves a tag by id.
func (s *Store) GetTag(ctx context.Context, id int64) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tag_name, description, color, created_at FROM tags WHERE id = ?`, id)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "get tag %d", id)
	}
	return &t, nil
}

// GetTagByName retrieves a tag by its unique name.
func (s *Store) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tag_name, description, color, created_at FROM tags WHERE tag_name = ?`, name)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "get tag by name %q", name)
	}
	return &t, nil
}

// ListTags returns every tag, alphabetically by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tag_name, description, color, created_at FROM tags ORDER BY tag_name ASC`)
	if err != nil {
		return nil, apperr.Storage(err, "list tags")
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan tag")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTag changes an existing tag's fields.
func (s *Store) UpdateTag(ctx context.Context, id int64, t NewTag) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tags SET tag_name = ?, description = ?, color = ? WHERE id = ?
	`, t.Name, t.Description, t.Color, id)
	if err != nil {
		return apperr.Storage(err, "update tag %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(err, "update tag %d", id)
	}
	if n == 0 {
		return apperr.NotFound("tag %d", id)
	}
	return nil
}

// DeleteTag removes a tag, cascading to its frame_tags rows.
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return apperr.Storage(err, "delete tag %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(err, "delete tag %d", id)
	}
	if n == 0 {
		return apperr.NotFound("tag %d", id)
	}
	return nil
}

// AddTagToFrame links a tag to a frame. Idempotent: re-adding the same
// pair is a no-op thanks to the UNIQUE(frame_id, tag_id) constraint.
func (s *Store) AddTagToFrame(ctx context.Context, frameID, tagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO frame_tags (frame_id, tag_id) VALUES (?, ?)
	`, frameID, tagID)
	if err != nil {
		return apperr.Storage(err, "add tag %d to frame %d", tagID, frameID)
	}
	return nil
}

// RemoveTagFromFrame unlinks a tag from a frame.
func (s *Store) RemoveTagFromFrame(ctx context.Context, frameID, tagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM frame_tags WHERE frame_id = ? AND tag_id = ?
	`, frameID, tagID)
	if err != nil {
		return apperr.Storage(err, "remove tag %d from frame %d", tagID, frameID)
	}
	return nil
}

// GetTagsForFrame lists the tags attached to a single frame.
func (s *Store) GetTagsForFrame(ctx context.Context, frameID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.tag_name, t.description, t.color, t.created_at
		FROM tags t
		JOIN frame_tags ft ON ft.tag_id = t.id
		WHERE ft.frame_id = ?
		ORDER BY t.tag_name ASC
	`, frameID)
	if err != nil {
		return nil, apperr.Storage(err, "get tags for frame %d", frameID)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan tag")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTagsForFrames bulk-loads tags for many frames in a single query,
// avoiding the N+1 pattern (P8). Returns a map keyed by frame id; frames
// with no tags are simply absent from the map.
func (s *Store) GetTagsForFrames(ctx context.Context, frameIDs []int64) (map[int64][]Tag, error) {
	out := make(map[int64][]Tag)
	if len(frameIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(frameIDs))
	args := make([]any, len(frameIDs))
	for i, id := range frameIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT ft.frame_id, t.id, t.tag_name, t.description, t.color, t.created_at
		FROM tags t
		JOIN frame_tags ft ON ft.tag_id = t.id
		WHERE ft.frame_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY t.tag_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err, "get tags for frames")
	}
	defer rows.Close()

	for rows.Next() {
		var frameID int64
		var t Tag
		var description, color sql.NullString
		if err := rows.Scan(&frameID, &t.ID, &t.Name, &description, &color, &t.CreatedAt); err != nil {
			return nil, apperr.Storage(err, "scan tag row")
		}
		if description.Valid {
			t.Description = &description.String
		}
		if color.Valid {
			t.Color = &color.String
		}
		out[frameID] = append(out[frameID], t)
	}
	return out, rows.Err()
}

// GetFramesByTag lists frames carrying a given tag, newest first.
func (s *Store) GetFramesByTag(ctx context.Context, tagID int64, page Pagination) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frameColumns+` FROM frames f
		JOIN frame_tags ft ON ft.frame_id = f.id
		WHERE ft.tag_id = ?
		ORDER BY f.timestamp DESC
		LIMIT ? OFFSET ?
	`, tagID, page.Limit, page.Offset)
	if err != nil {
		return nil, apperr.Storage(err, "get frames by tag %d", tagID)
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
