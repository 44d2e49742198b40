package health

import (
	"context"
	"net/http"
	"time"

	"otelmobile/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check names a dependency probed by Readiness.
type Check struct {
	Name   string
	Pinger Pinger
}

type Checker struct {
	checks  []Check
	timeout time.Duration
	logger  logger.Logger
}

func NewChecker(logger logger.Logger, checks ...Check) *Checker {
	return &Checker{
		checks:  checks,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

type Status struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *Checker) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, Status{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Checker) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		if check.Pinger == nil {
			continue
		}
		if err := check.Pinger.Ping(ctx); err != nil {
			checks[check.Name] = "unhealthy: " + err.Error()
			healthy = false
			h.logger.Warn("readiness check failed",
				logger.Field{Key: "check", Value: check.Name},
				logger.Field{Key: "error", Value: err.Error()},
			)
		} else {
			checks[check.Name] = "healthy"
		}
	}

	if healthy {
		c.JSON(http.StatusOK, Status{
			Status:    "ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		})
	} else {
		c.JSON(http.StatusServiceUnavailable, Status{
			Status:    "not_ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		})
	}
}
