package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/services"
)

// Every API response is HTTP 200 with a success flag; clients branch on the body.

func ok(c *gin.Context, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func okMessage(c *gin.Context, msg string) {
	ok(c, gin.H{"message": msg})
}

func (h *Handler) fail(c *gin.Context, err error) {
	e := services.AsError(err)
	switch e.Kind {
	case services.KindInternal, services.KindUpstream:
		h.log.Error().Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"success": false, "message": e.Message})
}

func failMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
}

// bind decodes the JSON or form body into req. On failure it answers with msg.
func bind(c *gin.Context, req interface{}, msg string) bool {
	if err := c.ShouldBind(req); err != nil {
		failMessage(c, msg)
		return false
	}
	return true
}
