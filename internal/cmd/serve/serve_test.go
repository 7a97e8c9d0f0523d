package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMaxBodySizeMiddleware_Enforces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(maxBodySizeMiddleware(4))
	router.POST("/v1/rooms/1/unsend", readBodyLengthHandler)

	req := httptest.NewRequest(http.MethodPost, "/v1/rooms/1/unsend", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/rooms/1/unsend", strings.NewReader("0123"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "4", rec.Body.String())
}

func readBodyLengthHandler(c *gin.Context) {
	n, err := io.Copy(io.Discard, c.Request.Body)
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}
	c.String(http.StatusOK, "%d", n)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BlobType = "memory"
	cfg.PlatformType = "none"
	cfg.Listener.Port = 0
	cfg.APIKeys = map[string]string{"test-key": "tester"}
	return &cfg
}

func TestStartServer_SinglePort(t *testing.T) {
	cfg := testConfig()
	srv, err := StartServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", srv.Running.Port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(baseURL + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(baseURL + "/v1/rooms")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, baseURL+"/v1/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "test-key")
	resp, err = client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"rooms":[]`)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStartServer_RejectsBadMetricsLabels(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsLabels = "not-a-label"
	_, err := StartServer(context.Background(), cfg)
	require.ErrorContains(t, err, "metrics-labels")
}

func TestStartSinglePortHTTP_RequiresAMode(t *testing.T) {
	_, err := StartSinglePortHTTP("main", config.ListenerConfig{}, http.NotFoundHandler())
	require.Error(t, err)
}

func TestGenerateSelfSignedCertificate(t *testing.T) {
	cert, err := generateSelfSignedCertificate()
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	require.NotNil(t, cert.PrivateKey)
}
