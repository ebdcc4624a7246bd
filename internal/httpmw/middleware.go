// Package httpmw holds the gin middleware shared by the router's and
// each worker's HTTP servers.
package httpmw

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger logs every request with method, path, status, and latency.
func Logger(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[%s] %s %s | %d | %s",
			component,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// Recovery recovers a panicking handler, logs the panic, and replies 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %v", err)
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
