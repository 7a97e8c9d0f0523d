package system

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	registryroute "github.com/chirino/chat-archive/internal/registry/route"
)

// ReadinessCheck probes a dependency. A non-nil error marks the service unready.
type ReadinessCheck func(ctx context.Context) error

var (
	ready     atomic.Bool
	readiness atomic.Pointer[ReadinessCheck]
)

const readinessTimeout = 3 * time.Second

// MarkReady signals that the service has finished initializing and is ready to
// serve traffic. Call this once StartServer has completed successfully.
func MarkReady() {
	ready.Store(true)
}

// SetReadinessCheck installs a probe run on every /ready request once the
// service is marked ready. A nil check removes it.
func SetReadinessCheck(check ReadinessCheck) {
	if check == nil {
		readiness.Store(nil)
		return
	}
	readiness.Store(&check)
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "system",
		Order: 0,
		Type:  registryroute.RouteTypeManagement,
		Loader: func(r *gin.Engine, _ registryroute.Deps) error {
			// Liveness: process is up
			r.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			// Readiness: initialized and the archive store answers
			r.GET("/ready", func(c *gin.Context) {
				if !ready.Load() {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
					return
				}
				if check := readiness.Load(); check != nil {
					ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
					defer cancel()
					if err := (*check)(ctx); err != nil {
						log.Warn("Readiness check failed", "err", err)
						c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
						return
					}
				}
				c.JSON(http.StatusOK, gin.H{"status": "ready"})
			})

			// Prometheus metrics
			r.GET("/metrics", gin.WrapH(promhttp.Handler()))

			return nil
		},
	})
}
