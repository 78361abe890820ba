package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency readiness depends on, such as the store or Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks       map[string]Pinger
	shuttingDown func() bool
	timeout      time.Duration
}

// NewHealthHandler builds liveness and readiness. shuttingDown may be nil.
func NewHealthHandler(checks map[string]Pinger, shuttingDown func() bool) *HealthHandler {
	return &HealthHandler{checks: checks, shuttingDown: shuttingDown, timeout: 2 * time.Second}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz pings every dependency concurrently and reports each one.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.shuttingDown != nil && h.shuttingDown() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		g       errgroup.Group
	)

	for name, p := range h.checks {
		g.Go(func() error {
			err := p.Ping(cctx)

			status := "ok"
			if err != nil {
				status = err.Error()
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()

			return err
		})
	}

	if err := g.Wait(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": results})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}
