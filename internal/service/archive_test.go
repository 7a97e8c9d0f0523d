package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/archive"
	"github.com/chirino/chat-archive/internal/config"
	"github.com/chirino/chat-archive/internal/model"
	"github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	_ "github.com/chirino/chat-archive/internal/plugin/platform/disabled"
	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
	"github.com/chirino/chat-archive/internal/unsend"
	"github.com/stretchr/testify/require"
)

type okMessenger struct{}

func (okMessenger) Name() string { return "ok" }

func (okMessenger) DeleteMessage(context.Context, string, int64) (registryplatform.DeleteResult, error) {
	return registryplatform.DeleteResult{OK: true}, nil
}

func seed(t *testing.T, s *memstore.Store, key string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	s.Seed(key, data, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestArchive_UsesConfiguredPrefix(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ArchivePrefix = "/bots/alpha/"
	s := memstore.New()
	layout := archive.NewLayout("bots/alpha/")
	seed(t, s, layout.GroupedKey("-1"), map[string]any{"messages": []any{
		map[string]any{"text": "hello", "isBot": true, "messageId": 5, "timestamp": 1772366400000},
	}})
	seed(t, s, layout.SearchPrefix()+"-1.json", map[string]any{"messages": []any{
		map[string]any{"text": "hello", "isBot": true},
	}})

	a := New(&cfg, s, okMessenger{})
	ctx := context.Background()

	list, err := a.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, list.Rooms, 1)

	view, err := a.GetRoom(ctx, "-1")
	require.NoError(t, err)
	require.Equal(t, model.TierGrouped, view.Tier)

	hits, err := a.Search(ctx, "HELLO")
	require.NoError(t, err)
	require.Len(t, hits.Hits, 1)

	res, err := a.DeleteBotMessage(ctx, "-1", unsend.Target{MessageID: model.Int64Ptr(5)})
	require.NoError(t, err)
	require.True(t, res.Success)

	view, err = a.GetRoom(ctx, "-1")
	require.NoError(t, err)
	require.Empty(t, view.Messages)
}

func TestOpen_MemoryStoreWithDisabledPlatform(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BlobType = "memory"
	cfg.PlatformType = "none"

	a, err := Open(context.Background(), &cfg)
	require.NoError(t, err)

	list, err := a.ListRooms(context.Background())
	require.NoError(t, err)
	require.Empty(t, list.Rooms)
}

func TestOpen_UnknownPlugins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BlobType = "floppy"
	_, err := Open(context.Background(), &cfg)
	require.ErrorContains(t, err, "floppy")

	cfg.BlobType = "memory"
	cfg.PlatformType = "carrier-pigeon"
	_, err = Open(context.Background(), &cfg)
	require.ErrorContains(t, err, "carrier-pigeon")
}

func TestArchive_Ping(t *testing.T) {
	cfg := config.DefaultConfig()
	a := New(&cfg, memstore.New(), okMessenger{})
	require.NoError(t, a.Ping(context.Background()))
}
