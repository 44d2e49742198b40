package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	SessionHeader     = "X-Honeycomb-Session-Id"
	SessionContextKey = "session.id"
)

type SessionIDSource interface {
	SessionID() string
}

// SessionMiddleware resolves the current session for each request, exposes
// it on the gin context and echoes it in a response header.
func SessionMiddleware(src SessionIDSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := src.SessionID()
		c.Set(SessionContextKey, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}
