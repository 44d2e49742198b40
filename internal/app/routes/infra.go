package routes

import (
	"net/http"

	"otelmobile/internal/app/health"

	"github.com/gin-gonic/gin"
)

func SetupInfra(r *gin.Engine, hc *health.Checker, metrics http.Handler) {
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.GET("/healthz", hc.Liveness)
	r.GET("/readyz", hc.Readiness)
}
