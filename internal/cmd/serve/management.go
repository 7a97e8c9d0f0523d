package serve

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/config"
	registryroute "github.com/chirino/chat-archive/internal/registry/route"
	"github.com/chirino/chat-archive/internal/security"
	"github.com/gin-gonic/gin"
)

// startManagementServer serves the management route plugins (health,
// readiness, metrics) on their own port. Plaintext is used when neither mode
// is enabled.
func startManagementServer(cfg config.ListenerConfig, accessLog bool) (*RunningServers, error) {
	if !cfg.EnablePlainText && !cfg.EnableTLS {
		cfg.EnablePlainText = true
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if accessLog {
		router.Use(security.AccessLogMiddleware())
	}
	if err := mountManagementRoutes(router); err != nil {
		return nil, err
	}

	running, err := StartSinglePortHTTP("management", cfg, router)
	if err != nil {
		return nil, err
	}
	log.Info("Management server listening", "addr", running.Addr)
	return running, nil
}

func mountManagementRoutes(router *gin.Engine) error {
	if err := registryroute.MountAll(router, registryroute.RouteTypeManagement, registryroute.Deps{}); err != nil {
		return fmt.Errorf("failed to load management routes: %w", err)
	}
	return nil
}
