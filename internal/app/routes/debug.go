package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SnapshotSource renders the state served under /debug/session.
type SnapshotSource interface {
	Snapshot() any
}

func SetupDebug(r *gin.Engine, src SnapshotSource) {
	g := r.Group("/debug")
	g.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Snapshot())
	})
}
