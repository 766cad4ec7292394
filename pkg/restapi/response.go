package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manim-service/pkg/errno"
	"manim-service/pkg/logger"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Success writes data as the JSON body with status 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Failed maps err to its HTTP status and writes an ErrorResponse.
func Failed(c *gin.Context, err error) {
	e := errno.Decode(err)
	status := e.HTTPStatus()
	msg := e.Message
	if status >= http.StatusInternalServerError && err != nil {
		msg = err.Error()
		logger.Warn("request failed", map[string]interface{}{
			"path":  c.FullPath(),
			"code":  e.Code,
			"error": err.Error(),
		})
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: e.Code})
}
