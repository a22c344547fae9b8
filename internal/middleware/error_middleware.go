package middleware

import (
	"net/http"

	"benome-realtime/internal/transport/httpdto"
	benome_errors "benome-realtime/pkg/errors"
	"benome-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler answers errors attached with c.Error when the handler wrote
// nothing, and recovers panics as 500s.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.WithContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
				}
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		l.WithContext(c.Request.Context()).Error("request error", zap.Error(err))
		if c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, httpdto.NewErrorResponse(benome_errors.Message(err), benome_errors.Code(err)))
	}
}
