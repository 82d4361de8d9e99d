// Package core holds the shared HTTP response envelope used by every handler.
package core

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyrdlab/reverie/pkg/errorx"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// ErrResponse is the uniform error body. Reference is omitted when empty.
type ErrResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// WriteResponse writes either an error body (resolved through the errorx
// coder registry) or the success payload.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		logger.Warn("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		coder := errorx.ParseCoder(err)
		c.JSON(coder.HTTPStatus(), ErrResponse{
			Code:      coder.Code(),
			Message:   coder.String(),
			Reference: coder.Reference(),
		})
		return
	}

	c.JSON(http.StatusOK, data)
}
