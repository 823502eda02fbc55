package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"screensearch/internal/apperr"
	"screensearch/internal/store"
)

// handleSearch implements GET /api/search: full-text search by default,
// or cosine-similarity semantic search when mode=semantic, grounded on
// search.rs's dual-mode dispatch.
func (d *Deps) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, apperr.InvalidRequest("search query cannot be empty"))
		return
	}
	limit := queryInt(c, "limit", 100)

	filter := store.FrameFilter{}
	if app := c.Query("app"); app != "" {
		filter.AppName = &app
	}
	if st, ok := queryTime(c, "start_time"); ok {
		filter.StartTime = &st
	}
	if et, ok := queryTime(c, "end_time"); ok {
		filter.EndTime = &et
	}

	ctx := c.Request.Context()
	var results []store.SearchResult
	var err error

	if c.Query("mode") == "semantic" {
		if d.Embedder == nil {
			respondError(c, apperr.New(apperr.KindConfigError, "embeddings are not enabled"))
			return
		}
		vec, embedErr := d.Embedder.Embed(ctx, q)
		if embedErr != nil {
			respondError(c, apperr.External(embedErr, "embed search query"))
			return
		}
		semantic, searchErr := d.Store.SemanticSearch(ctx, vec, int(limit))
		if searchErr != nil {
			respondError(c, searchErr)
			return
		}
		results = semanticToSearchResults(semantic)
	} else {
		results, err = d.Store.SearchOcrText(ctx, q, filter, store.Pagination{Limit: limit})
		if err != nil {
			respondError(c, err)
			return
		}
	}

	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Frame.ID)
	}
	tagsByFrame, err := d.Store.GetTagsForFrames(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	for i := range results {
		results[i].Tags = tagsByFrame[results[i].Frame.ID]
	}

	c.JSON(http.StatusOK, toSearchResultResponses(results))
}

// semanticToSearchResults adapts SemanticResult (one chunk per row) into
// the SearchResult shape so both search modes render through the same
// response type, matching search.rs's behavior of synthesizing a
// placeholder OCR match from the matched chunk.
func semanticToSearchResults(results []store.SemanticResult) []store.SearchResult {
	out := make([]store.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, store.SearchResult{
			Frame:          r.Frame,
			OcrMatches:     []store.OcrText{{FrameID: r.Frame.ID, Text: r.ChunkText, Confidence: float64(r.SimilarityScore)}},
			RelevanceScore: float64(r.SimilarityScore),
		})
	}
	return out
}

func toSearchResultResponses(results []store.SearchResult) []SearchResultResponse {
	out := make([]SearchResultResponse, 0, len(results))
	for _, r := range results {
		matches := make([]string, 0, len(r.OcrMatches))
		for _, m := range r.OcrMatches {
			matches = append(matches, m.Text)
		}
		tags := make([]string, 0, len(r.Tags))
		for _, t := range r.Tags {
			tags = append(tags, t.Name)
		}
		out = append(out, SearchResultResponse{
			Frame: FrameSummary{
				ID:            r.Frame.ID,
				Timestamp:     r.Frame.Timestamp,
				FilePath:      r.Frame.FilePath,
				ActiveProcess: derefOr(r.Frame.ActiveProcess, ""),
				ActiveWindow:  derefOr(r.Frame.ActiveWindow, ""),
			},
			OcrMatches:     matches,
			RelevanceScore: r.RelevanceScore,
			Tags:           tags,
		})
	}
	return out
}

// handleSearchKeywords implements GET /api/search/keywords: returns
// distinct matched OCR text strings, for autocomplete-style suggestion
// lists.
func (d *Deps) handleSearchKeywords(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("keywords"))
	if raw == "" {
		respondError(c, apperr.InvalidRequest("keywords cannot be empty"))
		return
	}

	var keywords []string
	for _, kw := range strings.Split(raw, ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		respondError(c, apperr.InvalidRequest("no valid keywords provided"))
		return
	}

	limit := queryInt(c, "limit", 100)
	matches, err := d.Store.SearchOcrKeywords(c.Request.Context(), keywords, store.Pagination{Limit: limit})
	if err != nil {
		respondError(c, err)
		return
	}

	seen := make(map[string]bool, len(matches))
	suggestions := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m.Text] {
			seen[m.Text] = true
			suggestions = append(suggestions, m.Text)
		}
	}
	c.JSON(http.StatusOK, suggestions)
}

func queryInt(c *gin.Context, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
