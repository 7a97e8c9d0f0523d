package search

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/archive"
	"github.com/chirino/chat-archive/internal/config"
	"github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	"github.com/chirino/chat-archive/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, s *memstore.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	r := gin.New()
	MountRoutes(r, service.New(&cfg, s, nil), func(c *gin.Context) { c.Next() })
	return r
}

func TestSearchRoute(t *testing.T) {
	s := memstore.New()
	doc, err := json.Marshal(map[string]any{"messages": []any{
		map[string]any{"text": "Build green", "isBot": true},
		map[string]any{"text": "build red", "isBot": true},
	}})
	require.NoError(t, err)
	s.Seed(archive.NewLayout("").SearchPrefix()+"-1.json", doc, time.Now())
	r := newRouter(t, s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/search?q=BUILD", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body archive.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Hits, 1)
	require.Equal(t, "-1", body.Hits[0].RoomID)
	require.Equal(t, 2, body.Hits[0].MatchCount)
}

func TestSearchRoute_EmptyQuery(t *testing.T) {
	r := newRouter(t, memstore.New())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `"field":"query"`)
}

func TestSearchRoute_SkipsUnreadableDocuments(t *testing.T) {
	s := memstore.New()
	key := archive.NewLayout("").SearchPrefix() + "1.json"
	s.Seed(key, []byte(`{"messages":[]}`), time.Now())
	s.FailGet(key, errors.New("boom"))
	r := newRouter(t, s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/search?q=x", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"failed":1`)
}
