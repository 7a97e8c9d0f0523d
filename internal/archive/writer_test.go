package archive

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chirino/chat-archive/internal/model"
	"github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/stretchr/testify/require"
)

func TestRemove_GroupedPreservesOtherFields(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	key := l.GroupedKey("-1")
	seedJSON(t, s, key, map[string]any{
		"chatTitle": "Ops",
		"version":   3,
		"messages": []any{
			msg("keep", false, 0, base),
			msg("drop", true, 7, base.Add(time.Second)),
		},
	}, base)

	ctx := context.Background()
	res, err := NewReader(s, l, 0).Resolve(ctx, "-1")
	require.NoError(t, err)
	require.NoError(t, NewWriter(s).Remove(ctx, res, 1))

	raw, ok := s.Bytes(key)
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "Ops", doc["chatTitle"])
	require.EqualValues(t, 3, doc["version"])
	require.Len(t, doc["messages"], 1)

	again, err := NewReader(s, l, 0).Resolve(ctx, "-1")
	require.NoError(t, err)
	require.Equal(t, model.TierGrouped, again.Tier)
	require.Len(t, again.Messages, 1)
	require.Equal(t, "keep", again.Messages[0].Text)
}

func TestRemove_KeepsUntouchedBytes(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	key := l.GroupedKey("-3")
	kept := "{\n  \"text\": \"a<b & c>d\",\n  \"isBot\": false,\n  \"messageId\": 1\n}"
	stored := "{\"title\": \"R&D <ops>\", \"messages\": [\n" + kept +
		",\n{\"text\":\"bye\",\"isBot\":true,\"messageId\":2}\n]}"
	s.Seed(key, []byte(stored), base)

	ctx := context.Background()
	res, err := NewReader(s, l, 0).Resolve(ctx, "-3")
	require.NoError(t, err)
	require.NoError(t, NewWriter(s).Remove(ctx, res, 1))

	raw, ok := s.Bytes(key)
	require.True(t, ok)
	require.Equal(t, `{"messages":[`+kept+`],"title":"R&D <ops>"}`, string(raw))
	require.True(t, json.Valid(raw))
}

func TestRemove_LegacyStaysBareArray(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	key := l.LegacyKey("5")
	seedJSON(t, s, key, []any{msg("drop", true, 1, base), msg("keep", true, 2, base)}, base)

	ctx := context.Background()
	res, err := NewReader(s, l, 0).Resolve(ctx, "5")
	require.NoError(t, err)
	require.NoError(t, NewWriter(s).Remove(ctx, res, 0))

	raw, _ := s.Bytes(key)
	var messages []map[string]any
	require.NoError(t, json.Unmarshal(raw, &messages))
	require.Len(t, messages, 1)
	require.Equal(t, "keep", messages[0]["text"])
	require.NotContains(t, s.Keys(), l.GroupedKey("5"))
}

func TestRemove_PerMessageDeletesSingleObject(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	prefix := l.PerMessageRoomPrefix("9")
	seedJSON(t, s, prefix+"a.json", msg("keep", true, 1, base), base)
	seedJSON(t, s, prefix+"b.json", msg("drop", true, 2, base.Add(time.Second)), base.Add(time.Second))

	ctx := context.Background()
	res, err := NewReader(s, l, 0).Resolve(ctx, "9")
	require.NoError(t, err)
	require.NoError(t, NewWriter(s).Remove(ctx, res, 1))
	require.Equal(t, []string{prefix + "a.json"}, s.Keys())
}

func TestRemove_StoreFailure(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	seedJSON(t, s, l.GroupedKey("1"), grouped(msg("drop", true, 1, base)), base)

	ctx := context.Background()
	res, err := NewReader(s, l, 0).Resolve(ctx, "1")
	require.NoError(t, err)

	s.FailPut(errors.New("access denied"))
	err = NewWriter(s).Remove(ctx, res, 0)
	var storeErr *registryblob.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "put", storeErr.Op)
	require.Equal(t, l.GroupedKey("1"), storeErr.Key)
}

func TestRemove_IndexOutOfRange(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	seedJSON(t, s, l.GroupedKey("1"), grouped(msg("only", true, 1, base)), base)

	res, err := NewReader(s, l, 0).Resolve(context.Background(), "1")
	require.NoError(t, err)
	require.Error(t, NewWriter(s).Remove(context.Background(), res, 1))
}

// Two removals resolved from the same snapshot: the second write wins and the
// first removal is lost.
func TestRemove_LastWriterWins(t *testing.T) {
	s := memstore.New()
	l := NewLayout("")
	key := l.GroupedKey("1")
	seedJSON(t, s, key, grouped(msg("a", true, 1, base), msg("b", true, 2, base), msg("c", true, 3, base)), base)

	ctx := context.Background()
	r := NewReader(s, l, 0)
	first, err := r.Resolve(ctx, "1")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "1")
	require.NoError(t, err)

	w := NewWriter(s)
	require.NoError(t, w.Remove(ctx, first, 0))
	require.NoError(t, w.Remove(ctx, second, 2))

	final, err := r.Resolve(ctx, "1")
	require.NoError(t, err)
	texts := []string{}
	for _, m := range final.Messages {
		texts = append(texts, m.Text)
	}
	require.Equal(t, []string{"a", "b"}, texts)
}
