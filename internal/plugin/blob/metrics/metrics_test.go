package metrics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	"github.com/chirino/chat-archive/internal/security"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWrap_RecordsLatencyPerOperation(t *testing.T) {
	security.InitMetrics(nil)
	store := Wrap(memstore.New())
	ctx := context.Background()

	require.NoError(t, store.PutJSON(ctx, "chats/1.json", json.RawMessage(`{"messages":[]}`)))
	_, ok, err := store.GetJSON(ctx, "chats/1.json")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = store.List(ctx, "chats/", 0)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "chats/1.json"))

	require.GreaterOrEqual(t, testutil.CollectAndCount(security.StoreLatency), 4)
}
