package serve

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/config"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	_ "github.com/chirino/chat-archive/internal/plugin/blob/s3store"
	_ "github.com/chirino/chat-archive/internal/plugin/platform/disabled"
	_ "github.com/chirino/chat-archive/internal/plugin/platform/telegram"
	_ "github.com/chirino/chat-archive/internal/plugin/route/rooms"
	_ "github.com/chirino/chat-archive/internal/plugin/route/search"
	_ "github.com/chirino/chat-archive/internal/plugin/route/system"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var readHeaderTimeoutSecs int = 5
	var apiKeys string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat archive HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs, &apiKeys),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if apiKeys != "" {
				keys, err := config.ParseAPIKeys(apiKeys)
				if err != nil {
					return err
				}
				cfg.APIKeys = keys
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.ManagementListener.ReadHeaderTimeout = cfg.Listener.ReadHeaderTimeout
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs *int, apiKeys *string) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "tls-cert-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_TLS_CERT_FILE"),
			Destination: &cfg.Listener.TLSCertFile,
			Usage:       "TLS certificate file for single-port TLS mode",
		},
		&cli.StringFlag{
			Name:        "tls-key-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_TLS_KEY_FILE"),
			Destination: &cfg.Listener.TLSKeyFile,
			Usage:       "TLS private key file for single-port TLS mode",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.BoolFlag{
			Name:        "management-access-log",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_MANAGEMENT_ACCESS_LOG"),
			Destination: &cfg.ManagementAccessLog,
			Usage:       "Enable HTTP access logging for management endpoints (/health, /ready, /metrics)",
		},

		// ── Network Listener ──────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP server port",
		},
		&cli.BoolFlag{
			Name:        "plain-text",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PLAIN_TEXT"),
			Destination: &cfg.Listener.EnablePlainText,
			Value:       cfg.Listener.EnablePlainText,
			Usage:       "Enable plaintext HTTP/1.1 + h2c",
		},
		&cli.BoolFlag{
			Name:        "tls",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_TLS"),
			Destination: &cfg.Listener.EnableTLS,
			Value:       cfg.Listener.EnableTLS,
			Usage:       "Enable TLS HTTP/1.1 + HTTP/2",
		},

		// ── Management Network Listener ───────────────────────────
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementListener.Port,
			Value:       cfg.ManagementListener.Port,
			Usage:       "Dedicated port for health and metrics (0 = OS-assigned random port); when unset, served on the main port",
		},
		&cli.BoolFlag{
			Name:        "management-plain-text",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_MANAGEMENT_PLAIN_TEXT"),
			Destination: &cfg.ManagementListener.EnablePlainText,
			Value:       cfg.ManagementListener.EnablePlainText,
			Usage:       "Enable plaintext HTTP for management server",
		},
		&cli.BoolFlag{
			Name:        "management-tls",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_MANAGEMENT_TLS"),
			Destination: &cfg.ManagementListener.EnableTLS,
			Value:       cfg.ManagementListener.EnableTLS,
			Usage:       "Enable TLS for management server",
		},

		// ── Archive Store ─────────────────────────────────────────
		&cli.StringFlag{
			Name:        "blob-kind",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_BLOB_KIND"),
			Destination: &cfg.BlobType,
			Value:       cfg.BlobType,
			Usage:       "Blob store backend (" + joinNames(registryblob.Names()) + ")",
		},
		&cli.StringFlag{
			Name:        "s3-bucket",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_S3_BUCKET"),
			Destination: &cfg.S3Bucket,
			Usage:       "S3 bucket holding the archive",
		},
		&cli.StringFlag{
			Name:        "s3-prefix",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_S3_PREFIX"),
			Destination: &cfg.S3Prefix,
			Usage:       "Key prefix applied to every S3 object",
		},
		&cli.StringFlag{
			Name:        "s3-endpoint",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_S3_ENDPOINT", "AWS_ENDPOINT_URL_S3"),
			Destination: &cfg.S3Endpoint,
			Usage:       "Custom S3 endpoint URL (LocalStack, MinIO)",
		},
		&cli.BoolFlag{
			Name:        "s3-use-path-style",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_S3_USE_PATH_STYLE"),
			Destination: &cfg.S3UsePathStyle,
			Usage:       "Use path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PREFIX"),
			Destination: &cfg.ArchivePrefix,
			Usage:       "Prefix in front of the chats/, history/, messages/ and conversations/ trees",
		},
		&cli.IntFlag{
			Name:        "per-message-load-limit",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PER_MESSAGE_LOAD_LIMIT"),
			Destination: &cfg.PerMessageLoadLimit,
			Value:       cfg.PerMessageLoadLimit,
			Usage:       "Most recent per-message files loaded when opening a room",
		},
		&cli.IntFlag{
			Name:        "per-message-scan-cap",
			Category:    "Archive Store:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PER_MESSAGE_SCAN_CAP"),
			Destination: &cfg.PerMessageScanCap,
			Value:       cfg.PerMessageScanCap,
			Usage:       "Maximum per-message keys listed when building the room list",
		},

		// ── Messaging Platform ────────────────────────────────────
		&cli.StringFlag{
			Name:        "platform-kind",
			Category:    "Messaging Platform:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_PLATFORM_KIND"),
			Destination: &cfg.PlatformType,
			Value:       cfg.PlatformType,
			Usage:       "Messaging platform (" + joinNames(registryplatform.Names()) + ")",
		},
		&cli.StringFlag{
			Name:        "telegram-bot-token",
			Category:    "Messaging Platform:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"),
			Destination: &cfg.TelegramBotToken,
			Usage:       "Telegram Bot API token",
		},
		&cli.StringFlag{
			Name:        "telegram-base-url",
			Category:    "Messaging Platform:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_TELEGRAM_BASE_URL"),
			Destination: &cfg.TelegramBaseURL,
			Value:       cfg.TelegramBaseURL,
			Usage:       "Telegram Bot API base URL",
		},

		// ── Authentication ────────────────────────────────────────
		&cli.StringFlag{
			Name:        "api-keys",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_API_KEYS"),
			Destination: apiKeys,
			Usage:       "Comma-separated key=operator pairs accepted as X-API-Key or Bearer tokens",
		},
		&cli.StringFlag{
			Name:        "oidc-issuer",
			Category:    "Authentication:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_OIDC_ISSUER"),
			Destination: &cfg.OIDCIssuer,
			Usage:       "OIDC issuer URL for operator bearer tokens",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("CHAT_ARCHIVE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       cfg.MetricsLabels,
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
	}
}

func joinNames(names []string) string {
	return strings.Join(names, "|")
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBodySize > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}
