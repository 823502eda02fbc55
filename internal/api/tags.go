package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"screensearch/internal/apperr"
	"screensearch/internal/store"
)

const (
	maxTagNameLen = 200
	maxTagDescLen = 1000
)

var hexColorRe = regexp.MustCompile(`^#([0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

func validateTagRequest(req createTagRequest) error {
	name := strings.TrimSpace(req.TagName)
	if name == "" {
		return apperr.InvalidRequest("tag name cannot be empty")
	}
	if len(name) > maxTagNameLen {
		return apperr.InvalidRequest("tag name must be <= %d characters", maxTagNameLen)
	}
	if req.Description != nil && len(*req.Description) > maxTagDescLen {
		return apperr.InvalidRequest("description must be <= %d characters", maxTagDescLen)
	}
	if req.Color != nil && !hexColorRe.MatchString(*req.Color) {
		return apperr.InvalidRequest("color must be a valid hex code (#RRGGBB or #RRGGBBAA)")
	}
	return nil
}

// handleCreateTag implements POST /api/tags.
func (d *Deps) handleCreateTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if err := validateTagRequest(req); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	name := strings.TrimSpace(req.TagName)
	if existing, err := d.Store.GetTagByName(ctx, name); err == nil && existing != nil {
		respondError(c, apperr.InvalidRequest("tag %q already exists", name))
		return
	}

	id, err := d.Store.CreateTag(ctx, store.NewTag{Name: name, Description: req.Description, Color: req.Color})
	if err != nil {
		respondError(c, err)
		return
	}
	tag, err := d.Store.GetTag(ctx, id)
	if err != nil || tag == nil {
		respondError(c, apperr.New(apperr.KindStorageFailure, "tag created but not found"))
		return
	}
	c.JSON(http.StatusOK, toTagResponse(*tag))
}

// handleListTags implements GET /api/tags.
func (d *Deps) handleListTags(c *gin.Context) {
	tags, err := d.Store.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTagResponses(tags))
}

// handleUpdateTag implements PUT /api/tags/:id.
func (d *Deps) handleUpdateTag(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if err := validateTagRequest(req); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	existing, err := d.Store.GetTag(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing == nil {
		respondError(c, apperr.NotFound("tag %d not found", id))
		return
	}

	name := strings.TrimSpace(req.TagName)
	if byName, err := d.Store.GetTagByName(ctx, name); err == nil && byName != nil && byName.ID != id {
		respondError(c, apperr.InvalidRequest("tag %q already exists", name))
		return
	}

	if err := d.Store.UpdateTag(ctx, id, store.NewTag{Name: name, Description: req.Description, Color: req.Color}); err != nil {
		respondError(c, err)
		return
	}
	updated, err := d.Store.GetTag(ctx, id)
	if err != nil || updated == nil {
		respondError(c, apperr.New(apperr.KindStorageFailure, "tag updated but not found"))
		return
	}
	c.JSON(http.StatusOK, toTagResponse(*updated))
}

// handleDeleteTag implements DELETE /api/tags/:id.
func (d *Deps) handleDeleteTag(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := d.Store.DeleteTag(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "tag deleted"})
}

// handleAddTagToFrame implements POST /api/frames/:id/tags.
func (d *Deps) handleAddTagToFrame(c *gin.Context) {
	frameID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req addTagToFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidRequest("invalid request body: %v", err))
		return
	}
	if err := d.Store.AddTagToFrame(c.Request.Context(), frameID, req.TagID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "tag added to frame"})
}

// handleGetFrameTags implements GET /api/frames/:id/tags.
func (d *Deps) handleGetFrameTags(c *gin.Context) {
	frameID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	frame, err := d.Store.GetFrame(ctx, frameID)
	if err != nil {
		respondError(c, err)
		return
	}
	if frame == nil {
		respondError(c, apperr.NotFound("frame %d not found", frameID))
		return
	}

	tags, err := d.Store.GetTagsForFrame(ctx, frameID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTagResponses(tags))
}

// handleRemoveTagFromFrame implements DELETE /api/frames/:id/tags/:tag_id.
func (d *Deps) handleRemoveTagFromFrame(c *gin.Context) {
	frameID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	tagID, err := pathInt64(c, "tag_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := d.Store.RemoveTagFromFrame(c.Request.Context(), frameID, tagID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "tag removed from frame"})
}
