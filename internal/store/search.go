package store

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"

	"screensearch/internal/apperr"
)

// SearchOcrText runs a lexical full-text query against ocr_text_fts,
// joins back to frames, and groups all matching OCR rows per frame.
// BM25 rank is negative (lower is better); RelevanceScore flips the
// sign so higher is always better, matching hybrid search's convention.
func (s *Store) SearchOcrText(ctx context.Context, query string, filter FrameFilter, page Pagination) ([]SearchResult, error) {
	sqlQuery := `
		SELECT f.id, f.chunk_id, f.timestamp, f.monitor_index, f.device_name, f.file_path,
			f.active_window, f.active_process, f.browser_url, f.width, f.height, f.focused, f.created_at,
			o.id, o.frame_id, o.text, o.text_json, o.x, o.y, o.width, o.height, o.confidence, o.created_at,
			ocr_text_fts.rank
		FROM ocr_text_fts
		JOIN ocr_text o ON o.id = ocr_text_fts.rowid
		JOIN frames f ON f.id = o.frame_id
		WHERE ocr_text_fts.text MATCH ?
	`
	args := []any{query}

	if filter.StartTime != nil {
		sqlQuery += " AND f.timestamp >= ?"
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		sqlQuery += " AND f.timestamp <= ?"
		args = append(args, *filter.EndTime)
	}
	if filter.AppName != nil {
		sqlQuery += " AND f.active_process = ?"
		args = append(args, *filter.AppName)
	}
	if filter.DeviceName != nil {
		sqlQuery += " AND f.device_name = ?"
		args = append(args, *filter.DeviceName)
	}
	if filter.MonitorIndex != nil {
		sqlQuery += " AND f.monitor_index = ?"
		args = append(args, *filter.MonitorIndex)
	}

	sqlQuery += " ORDER BY ocr_text_fts.rank ASC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperr.Storage(err, "search ocr text")
	}
	defer rows.Close()

	order := make([]int64, 0)
	byFrame := make(map[int64]*SearchResult)

	for rows.Next() {
		var f Frame
		var o OcrText
		var chunkID sql.NullInt64
		var activeWindow, activeProcess, browserURL, textJSON sql.NullString
		var rank float64

		if err := rows.Scan(
			&f.ID, &chunkID, &f.Timestamp, &f.MonitorIndex, &f.DeviceName, &f.FilePath,
			&activeWindow, &activeProcess, &browserURL, &f.Width, &f.Height, &f.Focused, &f.CreatedAt,
			&o.ID, &o.FrameID, &o.Text, &textJSON, &o.X, &o.Y, &o.Width, &o.Height, &o.Confidence, &o.CreatedAt,
			&rank,
		); err != nil {
			return nil, apperr.Storage(err, "scan search row")
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
		if textJSON.Valid {
			o.TextJSON = &textJSON.String
		}

		result, ok := byFrame[f.ID]
		if !ok {
			result = &SearchResult{Frame: f}
			byFrame[f.ID] = result
			order = append(order, f.ID)
		}
		result.OcrMatches = append(result.OcrMatches, o)
		relevance := -rank
		if relevance > result.RelevanceScore {
			result.RelevanceScore = relevance
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err, "iterate search rows")
	}

	out := make([]SearchResult, 0, len(order))
	for _, id := range order {
		out = append(out, *byFrame[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out, nil
}

// SearchOcrKeywords matches frames by substring keyword search against
// both the plain text and the structured text_json column, ordered by
// OCR confidence. Used as a cheaper fallback when FTS5 syntax isn't
// appropriate for the caller's input (e.g. raw user-typed phrases with
// punctuation FTS5 would reject).
func (s *Store) SearchOcrKeywords(ctx context.Context, keywords []string, page Pagination) ([]OcrText, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var clauses []string
	var args []any
	for _, kw := range keywords {
		clauses = append(clauses, "(text LIKE ? OR text_json LIKE ?)")
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT id, frame_id, text, text_json, x, y, width, height, confidence, created_at
		FROM ocr_text
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY confidence DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err, "search ocr keywords")
	}
	defer rows.Close()

	var out []OcrText
	for rows.Next() {
		var o OcrText
		var textJSON sql.NullString
		if err := rows.Scan(&o.ID, &o.FrameID, &o.Text, &textJSON, &o.X, &o.Y, &o.Width, &o.Height, &o.Confidence, &o.CreatedAt); err != nil {
			return nil, apperr.Storage(err, "scan keyword match")
		}
		if textJSON.Valid {
			o.TextJSON = &textJSON.String
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// cosineSimilarity computes the cosine similarity of two equal-length
// float32 vectors. Mismatched lengths (a stale embedding_dim) yield 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SemanticSearch scores every stored embedding against queryVec by
// cosine similarity (an O(N) scan over the whole embeddings table — see
// the retrieval engine's design notes for the scaling ceiling this
// accepts at personal-library size), keeps the top_k, and hydrates the
// owning frames in one batched query.
func (s *Store) SemanticSearch(ctx context.Context, queryVec []float32, topK int) ([]SemanticResult, error) {
	rows, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]SemanticResult, 0, len(rows))
	for _, r := range rows {
		sim := cosineSimilarity(queryVec, r.Vector)
		scored = append(scored, SemanticResult{
			Frame:           Frame{ID: r.FrameID},
			ChunkText:       r.ChunkText,
			ChunkIndex:      r.ChunkIndex,
			SimilarityScore: sim,
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].SimilarityScore > scored[j].SimilarityScore })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	ids := make([]int64, 0, len(scored))
	seen := make(map[int64]bool)
	for _, r := range scored {
		if !seen[r.Frame.ID] {
			seen[r.Frame.ID] = true
			ids = append(ids, r.Frame.ID)
		}
	}
	frames, err := s.FramesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range scored {
		if f, ok := frames[scored[i].Frame.ID]; ok {
			scored[i].Frame = f
		}
	}
	return scored, nil
}

// HybridSearch fuses semantic and lexical scores for the same query.
// Semantic results are scaled by alpha, lexical by (1-alpha); matches
// appearing in both are merged by (frame_id, chunk_text) with scores
// added rather than averaged, then the merged set is sorted descending
// and truncated to limit.
func (s *Store) HybridSearch(ctx context.Context, query string, queryVec []float32, alpha float64, limit int) ([]SemanticResult, error) {
	semantic, err := s.SemanticSearch(ctx, queryVec, limit*2)
	if err != nil {
		return nil, err
	}
	lexical, err := s.SearchOcrText(ctx, query, FrameFilter{}, Pagination{Limit: int64(limit * 2)})
	if err != nil {
		return nil, err
	}

	type key struct {
		frameID   int64
		chunkText string
	}
	merged := make(map[key]*SemanticResult)

	for _, r := range semantic {
		k := key{r.Frame.ID, r.ChunkText}
		score := float32(alpha) * r.SimilarityScore
		if existing, ok := merged[k]; ok {
			existing.SimilarityScore += score
		} else {
			scaled := r
			scaled.SimilarityScore = score
			merged[k] = &scaled
		}
	}
	for _, r := range lexical {
		for _, match := range r.OcrMatches {
			k := key{r.Frame.ID, match.Text}
			score := float32(1-alpha) * float32(r.RelevanceScore)
			if existing, ok := merged[k]; ok {
				existing.SimilarityScore += score
			} else {
				merged[k] = &SemanticResult{
					Frame:           r.Frame,
					ChunkText:       match.Text,
					SimilarityScore: score,
				}
			}
		}
	}

	out := make([]SemanticResult, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SimilarityScore > out[j].SimilarityScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
