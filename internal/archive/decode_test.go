package archive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDocument_ObjectPreservesOtherFields(t *testing.T) {
	doc, err := parseDocument(json.RawMessage(`{"chatId":"-1","chatTitle":"Ops","exportedBy":"bot","messages":[{"text":"a"},{"text":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.messages, 2)
	require.Equal(t, "Ops", doc.title())

	out, err := doc.without(0).encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"chatId":"-1","chatTitle":"Ops","exportedBy":"bot","messages":[{"text":"b"}]}`, string(out))

	// The original document is not modified.
	require.Len(t, doc.messages, 2)
}

func TestParseDocument_BareArray(t *testing.T) {
	doc, err := parseDocument(json.RawMessage(` [{"text":"a"}] `))
	require.NoError(t, err)
	require.Len(t, doc.messages, 1)

	out, err := doc.without(0).encode()
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(out))
}

func TestParseDocument_Rejects(t *testing.T) {
	_, err := parseDocument(json.RawMessage(`42`))
	require.Error(t, err)
	_, err = parseDocument(json.RawMessage(`{"messages":"nope"}`))
	require.Error(t, err)
	_, err = parseDocument(json.RawMessage(``))
	require.Error(t, err)
}

func TestDecodeMessage_TelegramUpdateShape(t *testing.T) {
	m := decodeMessage(json.RawMessage(`{
		"message_id": 103,
		"from": {"id": 1, "is_bot": true, "username": "archive_bot"},
		"chat": {"id": -100, "title": "Ops room"},
		"date": 1772366400,
		"text": "deploy done"
	}`))
	require.Equal(t, "deploy done", m.Text)
	require.Equal(t, "archive_bot", m.Sender)
	require.True(t, m.IsBot)
	require.NotNil(t, m.MessageID)
	require.Equal(t, int64(103), *m.MessageID)
	require.Equal(t, "Ops room", m.ChatTitle)
	require.Equal(t, time.Unix(1772366400, 0).UTC(), m.Timestamp)
}

func TestDecodeMessage_Aliases(t *testing.T) {
	m := decodeMessage(json.RawMessage(`{"content":"hi","role":"assistant","timestamp":"2026-03-01T12:00:00Z","messageId":"77"}`))
	require.Equal(t, "hi", m.Text)
	require.True(t, m.IsBot)
	require.Equal(t, base, m.Timestamp)
	require.Equal(t, int64(77), *m.MessageID)

	m = decodeMessage(json.RawMessage(`{"text":"x","timestamp":1772366400123,"from":"carol"}`))
	require.Equal(t, time.UnixMilli(1772366400123).UTC(), m.Timestamp)
	require.Equal(t, "carol", m.Sender)
	require.False(t, m.IsBot)
	require.Nil(t, m.MessageID)
}

func TestDecodeMessage_EntityArrayText(t *testing.T) {
	m := decodeMessage(json.RawMessage(`{"text":["see ",{"type":"link","text":"https://example.com"}," now"]}`))
	require.Equal(t, "see https://example.com now", m.Text)
}

func TestDecodeMessage_NonObjectKeepsRaw(t *testing.T) {
	raw := json.RawMessage(`"just text"`)
	m := decodeMessage(raw)
	require.Equal(t, "just text", m.Text)
	require.Equal(t, raw, m.Raw)
	require.False(t, m.IsBot)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "a b", preview("  a \n b "))
	long := make([]rune, previewRunes+5)
	for i := range long {
		long[i] = 'é'
	}
	p := preview(string(long))
	require.Equal(t, previewRunes+3, len([]rune(p)))
}
