package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// automationStub answers 501 for an automation endpoint. UI automation
// (clicking, typing, element discovery) requires a live desktop
// session on the capture host; this HTTP server has no display to
// drive, so every route in this group stays unimplemented rather than
// faking a capability it doesn't have.
func automationStub(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{
		"error":  "automation is not implemented by this server",
		"status": http.StatusNotImplemented,
	})
}

func (d *Deps) handleFindElements(c *gin.Context)  { automationStub(c) }
func (d *Deps) handleClick(c *gin.Context)          { automationStub(c) }
func (d *Deps) handleTypeText(c *gin.Context)       { automationStub(c) }
func (d *Deps) handleScroll(c *gin.Context)         { automationStub(c) }
func (d *Deps) handlePressKey(c *gin.Context)       { automationStub(c) }
func (d *Deps) handleGetText(c *gin.Context)        { automationStub(c) }
func (d *Deps) handleListElements(c *gin.Context)   { automationStub(c) }
func (d *Deps) handleOpenApp(c *gin.Context)        { automationStub(c) }
func (d *Deps) handleOpenURL(c *gin.Context)        { automationStub(c) }
