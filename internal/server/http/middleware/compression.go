package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxInflatedBody caps what a compressed request body may expand to.
const maxInflatedBody int64 = 4 << 20

// DecompressRequest inflates gzip request bodies for the handlers behind it.
// Handlers reading past maxInflatedBody get an error from the body reader.
func DecompressRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Content-Encoding")), "gzip") {
			c.Next()
			return
		}

		compressed := c.Request.Body
		inflated, err := gzip.NewReader(compressed)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		defer func() {
			_ = inflated.Close()
			_ = compressed.Close()
		}()

		c.Request.Body = http.MaxBytesReader(c.Writer, inflated, maxInflatedBody)
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}
