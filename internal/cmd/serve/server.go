package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/config"
	routesystem "github.com/chirino/chat-archive/internal/plugin/route/system"
	registryroute "github.com/chirino/chat-archive/internal/registry/route"
	"github.com/chirino/chat-archive/internal/security"
	"github.com/chirino/chat-archive/internal/service"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config     *config.Config
	Archive    *service.Archive
	Router     *gin.Engine
	Running    *RunningServers
	Management *RunningServers
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Management != nil {
		_ = s.Management.Close(ctx)
	}
	return s.Running.Close(ctx)
}

// StartServer opens the archive and starts HTTP on a single port.
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting chat archive",
		"httpPort", cfg.Listener.Port,
		"blob", cfg.BlobType,
		"platform", cfg.PlatformType,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	archive, err := service.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	router, err := NewRouter(cfg, archive)
	if err != nil {
		return nil, err
	}

	// Management routes get their own server when a management port is set;
	// otherwise they share the main router.
	var management *RunningServers
	if cfg.ManagementListenerEnabled {
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		management, err = startManagementServer(mgmtCfg, cfg.ManagementAccessLog)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
	} else if err := mountManagementRoutes(router); err != nil {
		return nil, err
	}

	running, err := StartSinglePortHTTP("main", cfg.Listener, router)
	if err != nil {
		if management != nil {
			_ = management.Close(ctx)
		}
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	routesystem.SetReadinessCheck(archive.Ping)
	routesystem.MarkReady()
	return &Server{
		Config:     cfg,
		Archive:    archive,
		Router:     router,
		Running:    running,
		Management: management,
	}, nil
}

// NewRouter builds the main gin engine with middleware and the archive routes.
func NewRouter(cfg *config.Config, archive *service.Archive) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(security.RequestIDMiddleware())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(security.AuditMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	deps := registryroute.Deps{
		Archive: archive,
		Auth:    security.AuthMiddleware(security.NewTokenResolver(cfg)),
	}
	if err := registryroute.MountAll(router, registryroute.RouteTypeMain, deps); err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	return router, nil
}
