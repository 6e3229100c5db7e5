package middleware

import (
	"net/http"

	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize rejects requests whose declared Content-Length exceeds limit
// with 413 and caps the body reader for the rest, so binding of an oversized
// chunked body fails.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.Error(c, apperror.ErrPayloadTooLarge(limit))
			c.Abort()
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
