package security

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyOperator is the gin context key for the authenticated operator.
	ContextKeyOperator = "operator"
	// ContextKeyAuthMethod is the gin context key for how the operator authenticated.
	ContextKeyAuthMethod = "authMethod"
)

const (
	AuthMethodAPIKey = "api-key"
	AuthMethodOIDC   = "oidc"
	AuthMethodNone   = "none"
)

// AnonymousOperator is recorded when authentication is disabled.
const AnonymousOperator = "anonymous"

// Identity is the resolved operator behind a request.
type Identity struct {
	Operator string
	Method   string
}

// TokenResolver turns API keys and OIDC bearer tokens into operator
// identities. It is built once at startup.
type TokenResolver struct {
	verifier *oidc.IDTokenVerifier
	apiKeys  map[string]string
}

// NewTokenResolver creates a TokenResolver from the application config. It
// performs one-time OIDC provider discovery if OIDCIssuer is configured.
func NewTokenResolver(cfg *config.Config) *TokenResolver {
	var verifier *oidc.IDTokenVerifier
	if issuer := strings.TrimSpace(cfg.OIDCIssuer); issuer != "" {
		provider, err := oidc.NewProvider(context.Background(), issuer)
		if err != nil {
			log.Error("Failed to initialize OIDC provider; falling back to API key auth", "issuer", issuer, "err", err)
		} else {
			verifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
			log.Info("OIDC auth enabled", "issuer", issuer)
		}
	}
	return newTokenResolver(verifier, cfg.APIKeys)
}

func newTokenResolver(verifier *oidc.IDTokenVerifier, apiKeys map[string]string) *TokenResolver {
	keys := make(map[string]string, len(apiKeys))
	for k, v := range apiKeys {
		keys[k] = v
	}
	return &TokenResolver{verifier: verifier, apiKeys: keys}
}

// Enabled reports whether any credential source is configured.
func (r *TokenResolver) Enabled() bool {
	return r != nil && (r.verifier != nil || len(r.apiKeys) > 0)
}

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidAPIKey      = errors.New("invalid API key")
	errInvalidJWT         = errors.New("invalid JWT")
	errMissingIdentity    = errors.New("JWT missing identity claims")
)

// Resolve resolves an operator from a bearer token or an X-API-Key value.
// bearerToken is the raw token without the "Bearer " prefix. A bearer token
// that is not JWT-shaped is treated as an API key.
func (r *TokenResolver) Resolve(ctx context.Context, bearerToken, apiKey string) (*Identity, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return r.resolveAPIKey(key)
	}
	token := strings.TrimSpace(bearerToken)
	if token == "" {
		return nil, errMissingCredentials
	}
	if r.verifier != nil && strings.Count(token, ".") >= 2 {
		idToken, err := r.verifier.Verify(ctx, token)
		if err != nil {
			return nil, errors.Join(errInvalidJWT, err)
		}
		var claims struct {
			Sub               string `json:"sub"`
			PreferredUsername string `json:"preferred_username"`
			Email             string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, errors.Join(errInvalidJWT, err)
		}
		operator := claims.PreferredUsername
		if operator == "" {
			operator = claims.Email
		}
		if operator == "" {
			operator = claims.Sub
		}
		if operator == "" {
			return nil, errMissingIdentity
		}
		return &Identity{Operator: operator, Method: AuthMethodOIDC}, nil
	}
	return r.resolveAPIKey(token)
}

func (r *TokenResolver) resolveAPIKey(key string) (*Identity, error) {
	operator, ok := r.apiKeys[key]
	if !ok {
		log.Warn("Received invalid API key")
		return nil, errInvalidAPIKey
	}
	return &Identity{Operator: operator, Method: AuthMethodAPIKey}, nil
}

// --- Gin HTTP middleware ---

// GetOperator returns the authenticated operator from the gin context.
func GetOperator(c *gin.Context) string {
	return c.GetString(ContextKeyOperator)
}

// AuthMiddleware authenticates operators. When the resolver has no
// credential source configured every request passes as the anonymous
// operator.
func AuthMiddleware(resolver *TokenResolver) gin.HandlerFunc {
	if !resolver.Enabled() {
		log.Warn("Operator authentication disabled: no API keys or OIDC issuer configured")
		return func(c *gin.Context) {
			c.Set(ContextKeyOperator, AnonymousOperator)
			c.Set(ContextKeyAuthMethod, AuthMethodNone)
			c.Next()
		}
	}
	return func(c *gin.Context) {
		var token string
		if auth := c.GetHeader("Authorization"); auth != "" {
			token = strings.TrimPrefix(auth, "Bearer ")
			if token == auth {
				log.Info("Auth rejected: invalid Authorization header; expected Bearer token", "method", c.Request.Method, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header; expected Bearer token"})
				return
			}
		}

		id, err := resolver.Resolve(c.Request.Context(), token, c.GetHeader("X-API-Key"))
		if err != nil {
			log.Info("Auth rejected", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextKeyOperator, id.Operator)
		c.Set(ContextKeyAuthMethod, id.Method)
		c.Next()
	}
}
