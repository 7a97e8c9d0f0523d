package archive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedJSON(t *testing.T, s *memstore.Store, key string, v any, modified time.Time) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	s.Seed(key, data, modified)
}

func msg(text string, isBot bool, id int64, ts time.Time) map[string]any {
	m := map[string]any{"text": text, "isBot": isBot, "sender": "alice"}
	if isBot {
		m["sender"] = "bot"
	}
	if id != 0 {
		m["messageId"] = id
	}
	if !ts.IsZero() {
		m["timestamp"] = ts.UnixMilli()
	}
	return m
}

func grouped(messages ...map[string]any) map[string]any {
	return map[string]any{"messages": messages}
}
