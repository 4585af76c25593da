package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

// check pings both stores concurrently and reports a status per dependency.
func (h *HealthChecker) check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"postgres": h.infra.Postgres().Ping,
		"redis":    h.infra.Redis().Ping,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]string, len(checks))
	healthy := true

	for name, ping := range checks {
		wg.Add(1)
		go func(name string, ping func(context.Context) error) {
			defer wg.Done()
			status := "pass"
			if err := ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			healthy = healthy && status == "pass"
			mu.Unlock()
		}(name, ping)
	}
	wg.Wait()

	return results, healthy
}

func (h *HealthChecker) Handler(c *gin.Context) {
	checks, healthy := h.check(c.Request.Context())

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
		"checks": checks,
	})
}
