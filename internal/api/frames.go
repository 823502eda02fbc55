package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"screensearch/internal/apperr"
	"screensearch/internal/store"
)

// handleListFrames implements GET /api/frames: defaults to the last 24
// hours, narrowed by monitor/time filters, or routed through lexical
// search when q is present, matching get_frames' dual path.
func (d *Deps) handleListFrames(c *gin.Context) {
	ctx := c.Request.Context()

	endTime := time.Now()
	if et, ok := queryTime(c, "end_time"); ok {
		endTime = et
	}
	startTime := endTime.Add(-24 * time.Hour)
	if st, ok := queryTime(c, "start_time"); ok {
		startTime = st
	}

	filter := store.FrameFilter{StartTime: &startTime, EndTime: &endTime}
	if mi := c.Query("monitor_index"); mi != "" {
		if idx, err := strconv.Atoi(mi); err == nil {
			filter.MonitorIndex = &idx
		}
	}

	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)
	page := store.Pagination{Limit: limit, Offset: offset}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		results, err := d.Store.SearchOcrText(ctx, q, filter, page)
		if err != nil {
			respondError(c, err)
			return
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

		frames := make([]FrameResponse, 0, len(results))
		for _, r := range results {
			var ocrParts []string
			for _, m := range r.OcrMatches {
				ocrParts = append(ocrParts, m.Text)
			}
			frames = append(frames, toFrameResponse(r.Frame, strings.Join(ocrParts, " "), tagsByFrame[r.Frame.ID]))
		}

		c.JSON(http.StatusOK, PaginatedFramesResponse{
			Data:       frames,
			Pagination: PaginationInfo{Limit: limit, Offset: offset, Total: int64(len(results))},
		})
		return
	}

	total, err := d.Store.CountFramesInRange(ctx, startTime, endTime)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := d.Store.GetFramesInRange(ctx, startTime, endTime, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]int64, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.ID)
	}
	tagsByFrame, err := d.Store.GetTagsForFrames(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}

	frames := make([]FrameResponse, 0, len(rows))
	for _, f := range rows {
		ocrRows, err := d.Store.GetOcrTextForFrame(ctx, f.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		var ocrParts []string
		for _, o := range ocrRows {
			ocrParts = append(ocrParts, o.Text)
		}
		frames = append(frames, toFrameResponse(f, strings.Join(ocrParts, " "), tagsByFrame[f.ID]))
	}

	c.JSON(http.StatusOK, PaginatedFramesResponse{
		Data:       frames,
		Pagination: PaginationInfo{Limit: limit, Offset: offset, Total: total},
	})
}

// handleGetFrame implements GET /api/frames/:id.
func (d *Deps) handleGetFrame(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	f, err := d.Store.GetFrame(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if f == nil {
		respondError(c, apperr.NotFound("frame %d not found", id))
		return
	}

	ocrRows, err := d.Store.GetOcrTextForFrame(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	var ocrParts []string
	for _, o := range ocrRows {
		ocrParts = append(ocrParts, o.Text)
	}
	tags, err := d.Store.GetTagsForFrame(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toFrameResponse(*f, strings.Join(ocrParts, " "), tags))
}

// handleFrameImage implements GET /api/frames/:id/image: streams the
// captured screenshot bytes with a MIME type inferred from extension.
func (d *Deps) handleFrameImage(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := d.Store.GetFrame(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if f == nil {
		respondError(c, apperr.NotFound("frame %d not found", id))
		return
	}

	data, err := os.ReadFile(f.FilePath)
	if err != nil {
		respondError(c, apperr.NotFound("image file not found: %s", f.FilePath))
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(f.FilePath, ".png"):
		contentType = "image/png"
	case strings.HasSuffix(f.FilePath, ".jpg"), strings.HasSuffix(f.FilePath, ".jpeg"):
		contentType = "image/jpeg"
	}
	c.Data(http.StatusOK, contentType, data)
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperr.InvalidRequest("invalid %s: %v", name, err)
	}
	return v, nil
}
