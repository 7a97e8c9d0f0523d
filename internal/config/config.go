package config

import (
	"context"
	"strings"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the chat archive.
type Config struct {
	// Blob store backend type
	BlobType string // "s3" or "memory"

	// S3
	S3Bucket       string
	S3Prefix       string
	S3Endpoint     string
	S3UsePathStyle bool

	// ArchivePrefix is prepended to every archive key, after S3Prefix.
	ArchivePrefix string

	// PerMessageLoadLimit caps how many per-message files are fetched when a
	// room is reconstructed from the per-message tier.
	PerMessageLoadLimit int

	// PerMessageScanCap caps how many per-message keys are listed when rooms
	// are aggregated from the per-message tier.
	PerMessageScanCap int

	// Messaging platform type
	PlatformType string // "telegram" or "none"

	// Telegram Bot API
	TelegramBotToken string
	TelegramBaseURL  string
	TelegramTimeout  time.Duration

	// OIDC
	OIDCIssuer string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port was explicitly provided.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for /health, /ready and /metrics.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Security
	// APIKeys maps API key values to operator names.
	APIKeys map[string]string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BlobType:            "s3",
		PerMessageLoadLimit: 10,
		PerMessageScanCap:   1000,
		PlatformType:        "telegram",
		TelegramBaseURL:     "https://api.telegram.org",
		TelegramTimeout:     10 * time.Second,
		MetricsLabels:       "service=chat-archive",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
		},
		MaxBodySize:  1024 * 1024,
		DrainTimeout: 30,
	}
}

// ResolvedArchivePrefix returns the archive prefix normalised to either "" or
// a value ending with a single "/".
func (c *Config) ResolvedArchivePrefix() string {
	if c == nil {
		return ""
	}
	p := strings.Trim(strings.TrimSpace(c.ArchivePrefix), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// AuthEnabled reports whether operator authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c != nil && (len(c.APIKeys) > 0 || strings.TrimSpace(c.OIDCIssuer) != "")
}
