package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	"screensearch/internal/apperr"
)

// encodeEmbedding packs a float32 vector into little-endian bytes for
// BLOB storage, matching the layout semantic search decodes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian float32 BLOB.
func decodeEmbedding(raw []byte) []float32 {
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec
}

// InsertEmbedding stores one chunk's embedding vector for a frame.
func (s *Store) InsertEmbedding(ctx context.Context, frameID int64, chunkText string, chunkIndex int, vec []float32) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (frame_id, chunk_text, chunk_index, embedding, embedding_dim)
		VALUES (?, ?, ?, ?, ?)
	`, frameID, chunkText, chunkIndex, encodeEmbedding(vec), len(vec))
	if err != nil {
		return 0, apperr.Storage(err, "insert embedding for frame %d", frameID)
	}
	return res.LastInsertId()
}

// InsertEmbeddingsForFrame stores all chunks for a frame inside a single
// transaction. If any chunk fails to insert, the whole frame's batch is
// rolled back so a frame never ends up with a partial chunk set (P4).
func (s *Store) InsertEmbeddingsForFrame(ctx context.Context, frameID int64, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return apperr.InvalidRequest("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage(err, "begin embedding batch for frame %d", frameID)
	}
	defer tx.Rollback()

	for i, chunkText := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (frame_id, chunk_text, chunk_index, embedding, embedding_dim)
			VALUES (?, ?, ?, ?, ?)
		`, frameID, chunkText, i, encodeEmbedding(vectors[i]), len(vectors[i])); err != nil {
			return apperr.Storage(err, "insert embedding chunk %d for frame %d", i, frameID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Storage(err, "commit embedding batch for frame %d", frameID)
	}
	return nil
}

// CountFramesWithEmbeddings reports how many distinct frames have at
// least one embedded chunk, for C9's /embeddings/status endpoint.
func (s *Store) CountFramesWithEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT frame_id) FROM embeddings`).Scan(&count)
	if err != nil {
		return 0, apperr.Storage(err, "count frames with embeddings")
	}
	return count, nil
}

// LastEmbeddedFrameID returns the id of the most recently embedded
// frame, or nil if no embeddings exist yet.
func (s *Store) LastEmbeddedFrameID(ctx context.Context) (*int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT frame_id FROM embeddings ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "last embedded frame id")
	}
	if !id.Valid {
		return nil, nil
	}
	return &id.Int64, nil
}

// embeddingRow is one decoded embedding joined with its frame, used by
// the O(N) semantic scan.
type embeddingRow struct {
	FrameID    int64
	ChunkText  string
	ChunkIndex int
	Vector     []float32
}

// AllEmbeddings loads every stored embedding for the in-memory cosine
// scan that backs semantic search. At personal-library scale (tens of
// thousands of frames) this comfortably fits in memory; see the
// retrieval engine's design notes for the scaling ceiling.
func (s *Store) AllEmbeddings(ctx context.Context) ([]embeddingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT frame_id, chunk_text, chunk_index, embedding FROM embeddings`)
	if err != nil {
		return nil, apperr.Storage(err, "load embeddings")
	}
	defer rows.Close()

	var out []embeddingRow
	for rows.Next() {
		var r embeddingRow
		var raw []byte
		if err := rows.Scan(&r.FrameID, &r.ChunkText, &r.ChunkIndex, &raw); err != nil {
			return nil, apperr.Storage(err, "scan embedding row")
		}
		r.Vector = decodeEmbedding(raw)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FramesByIDs bulk-fetches frames for a set of ids in a single query,
// used to hydrate semantic/hybrid search results without N+1 lookups.
func (s *Store) FramesByIDs(ctx context.Context, ids []int64) (map[int64]Frame, error) {
	out := make(map[int64]Frame)
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+frameColumns+` FROM frames WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, apperr.Storage(err, "load frames by id")
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan frame")
		}
		out[f.ID] = f
	}
	return out, rows.Err()
}
