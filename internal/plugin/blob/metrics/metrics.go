package metrics

import (
	"context"
	"encoding/json"
	"time"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/chirino/chat-archive/internal/security"
)

// Wrap returns a Store that records StoreLatency for every operation.
func Wrap(inner registryblob.Store) registryblob.Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner registryblob.Store
}

func observe(op string, start time.Time) {
	if security.StoreLatency == nil {
		return
	}
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) List(ctx context.Context, prefix string, limit int) ([]registryblob.ObjectInfo, error) {
	defer observe("list", time.Now())
	return m.inner.List(ctx, prefix, limit)
}

func (m *metricsStore) GetJSON(ctx context.Context, key string) (json.RawMessage, bool, error) {
	defer observe("get", time.Now())
	return m.inner.GetJSON(ctx, key)
}

func (m *metricsStore) PutJSON(ctx context.Context, key string, doc json.RawMessage) error {
	defer observe("put", time.Now())
	return m.inner.PutJSON(ctx, key, doc)
}

func (m *metricsStore) Delete(ctx context.Context, key string) error {
	defer observe("delete", time.Now())
	return m.inner.Delete(ctx, key)
}

var _ registryblob.Store = (*metricsStore)(nil)
