package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"age-verification-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthProbeTimeout = 2 * time.Second

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are probed in parallel, each
// under its own timeout; any failure turns the answer into 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu      sync.Mutex
			deps    = make(map[string]dependencyHealth, len(checkers))
			healthy = true
			g       errgroup.Group
		)
		for _, checker := range checkers {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
				defer cancel()

				start := time.Now()
				err := checker.Ping(ctx)
				res := dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					res.Status, res.Error = "unhealthy", err.Error()
				}

				mu.Lock()
				defer mu.Unlock()
				deps[checker.Name()] = res
				healthy = healthy && err == nil
				return nil
			})
		}
		_ = g.Wait()

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": deps})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": deps})
	}
}
