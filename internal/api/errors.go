package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"screensearch/internal/apperr"
)

// respondError writes err as a JSON error body, mapping its apperr.Kind
// to an HTTP status when possible (unclassified errors default to 500),
// matching the original handler's {"error", "status"} response shape.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	status := 500
	message := err.Error()
	if errors.As(err, &ae) {
		status = ae.Kind.HTTPStatus()
		message = ae.Message
		if ae.Err != nil {
			message = message + ": " + ae.Err.Error()
		}
	}
	c.JSON(status, gin.H{"error": message, "status": status})
}
