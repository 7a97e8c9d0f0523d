package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/stretchr/testify/require"
)

func TestStore_ListHonoursPrefixAndLimit(t *testing.T) {
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Seed("chats/b.json", []byte(`{}`), base)
	s.Seed("chats/a.json", []byte(`{}`), base.Add(time.Minute))
	s.Seed("messages/1/x.json", []byte(`{}`), base)

	objects, err := s.List(context.Background(), "chats/", 0)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "chats/a.json", objects[0].Key)
	require.Equal(t, base.Add(time.Minute), objects[0].LastModified)

	objects, err = s.List(context.Background(), "chats/", 1)
	require.NoError(t, err)
	require.Len(t, objects, 1)
}

func TestStore_GetJSON(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, ok, err := s.GetJSON(ctx, "missing.json")
	require.NoError(t, err)
	require.False(t, ok)

	s.Seed("corrupt.json", []byte(`{"messages":`), time.Now())
	_, _, err = s.GetJSON(ctx, "corrupt.json")
	require.ErrorIs(t, err, registryblob.ErrInvalidJSON)

	require.NoError(t, s.PutJSON(ctx, "ok.json", json.RawMessage(`{"a":1}`)))
	doc, ok, err := s.GetJSON(ctx, "ok.json")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(doc))
}

func TestStore_FailureInjection(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.Seed("a.json", []byte(`{}`), time.Now())
	s.FailGet("a.json", boom)
	_, _, err := s.GetJSON(ctx, "a.json")
	require.ErrorIs(t, err, boom)

	s.FailPut(boom)
	require.ErrorIs(t, s.PutJSON(ctx, "b.json", json.RawMessage(`{}`)), boom)
	require.ErrorIs(t, s.Delete(ctx, "a.json"), boom)

	s.FailPut(nil)
	require.NoError(t, s.Delete(ctx, "a.json"))
	require.Empty(t, s.Keys())
}
