package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chirino/chat-archive/internal/model"
)

const previewRunes = 100

// document is a stored conversation file. Grouped files are objects with a
// "messages" array; legacy files may also be a bare array.
type document struct {
	fields   map[string]json.RawMessage
	messages []json.RawMessage
}

func parseDocument(raw json.RawMessage) (*document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '[' {
		var messages []json.RawMessage
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("decode message array: %w", err)
		}
		return &document{messages: messages}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc := &document{fields: fields}
	if data, ok := fields["messages"]; ok && !isNull(data) {
		if err := json.Unmarshal(data, &doc.messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return doc, nil
}

// encode renders the document with its current message list. Every kept
// message and every top-level field other than "messages" is written back
// byte for byte; top-level keys come out sorted.
func (d *document) encode() (json.RawMessage, error) {
	var buf bytes.Buffer
	if d.fields == nil {
		writeArray(&buf, d.messages)
		return buf.Bytes(), nil
	}

	keys := make([]string, 0, len(d.fields)+1)
	for k := range d.fields {
		if k != "messages" {
			keys = append(keys, k)
		}
	}
	keys = append(keys, "messages")
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, k); err != nil {
			return nil, err
		}
		if k == "messages" {
			writeArray(&buf, d.messages)
			continue
		}
		buf.Write(d.fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeArray(buf *bytes.Buffer, entries []json.RawMessage) {
	buf.WriteByte('[')
	for i, entry := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(entry)
	}
	buf.WriteByte(']')
}

func writeKey(buf *bytes.Buffer, key string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return fmt.Errorf("encode key %q: %w", key, err)
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte(':')
	return nil
}

func (d *document) without(index int) *document {
	messages := make([]json.RawMessage, 0, len(d.messages))
	messages = append(messages, d.messages[:index]...)
	messages = append(messages, d.messages[index+1:]...)
	return &document{fields: d.fields, messages: messages}
}

// title returns the conversation title stored at the document level.
func (d *document) title() string {
	if d.fields == nil {
		return ""
	}
	return titleFrom(d.fields)
}

func (d *document) decodeMessages() []model.Message {
	out := make([]model.Message, len(d.messages))
	for i, raw := range d.messages {
		out[i] = decodeMessage(raw)
	}
	return out
}

// decodeMessage normalizes one stored message. It never fails: entries that
// are not objects keep their raw bytes and whatever text they carry.
func decodeMessage(raw json.RawMessage) model.Message {
	msg := model.Message{Raw: raw}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			msg.Text = s
		}
		return msg
	}

	msg.Text = textFrom(fields, "text", "content", "caption", "message")
	msg.Sender = senderFrom(fields)
	msg.IsBot = botFrom(fields)
	msg.MessageID = idFrom(fields, "messageId", "message_id", "platformMessageId", "id")
	msg.Timestamp = timeFrom(fields, "timestamp", "date", "ts", "sentAt", "sent_at", "createdAt", "created_at")
	msg.ChatTitle = titleFrom(fields)
	return msg
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func stringField(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		data, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(data, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// textFrom accepts plain strings and Telegram export style entity arrays
// ([ "plain", {"type":"bold","text":"x"} ]).
func textFrom(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		data, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(data, &s) == nil {
			if s != "" {
				return s
			}
			continue
		}
		var parts []json.RawMessage
		if json.Unmarshal(data, &parts) != nil {
			continue
		}
		var b strings.Builder
		for _, part := range parts {
			var ps string
			if json.Unmarshal(part, &ps) == nil {
				b.WriteString(ps)
				continue
			}
			var entity struct {
				Text string `json:"text"`
			}
			if json.Unmarshal(part, &entity) == nil {
				b.WriteString(entity.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

type fromObject struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsBot     *bool  `json:"is_bot"`
}

func parseFrom(fields map[string]json.RawMessage) (*fromObject, string) {
	data, ok := fields["from"]
	if !ok {
		return nil, ""
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return nil, s
	}
	var obj fromObject
	if json.Unmarshal(data, &obj) == nil {
		return &obj, ""
	}
	return nil, ""
}

func senderFrom(fields map[string]json.RawMessage) string {
	if s := stringField(fields, "sender", "senderName", "author"); s != "" {
		return s
	}
	obj, s := parseFrom(fields)
	if s != "" {
		return s
	}
	if obj != nil {
		if obj.Username != "" {
			return obj.Username
		}
		return strings.TrimSpace(obj.FirstName + " " + obj.LastName)
	}
	return stringField(fields, "username")
}

func botFrom(fields map[string]json.RawMessage) bool {
	for _, name := range []string{"isBot", "is_bot", "fromBot", "from_bot", "bot"} {
		data, ok := fields[name]
		if !ok {
			continue
		}
		var b bool
		if json.Unmarshal(data, &b) == nil {
			return b
		}
	}
	switch strings.ToLower(stringField(fields, "role")) {
	case "assistant", "bot":
		return true
	}
	if obj, _ := parseFrom(fields); obj != nil && obj.IsBot != nil {
		return *obj.IsBot
	}
	return false
}

func idFrom(fields map[string]json.RawMessage, names ...string) *int64 {
	for _, name := range names {
		data, ok := fields[name]
		if !ok || isNull(data) {
			continue
		}
		var n json.Number
		if json.Unmarshal(data, &n) == nil {
			if v, err := n.Int64(); err == nil {
				return &v
			}
			continue
		}
		var s string
		if json.Unmarshal(data, &s) == nil {
			if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return &v
			}
		}
	}
	return nil
}

func timeFrom(fields map[string]json.RawMessage, names ...string) time.Time {
	for _, name := range names {
		data, ok := fields[name]
		if !ok || isNull(data) {
			continue
		}
		if t, ok := ParseTimestamp(data); ok {
			return t
		}
	}
	return time.Time{}
}

// ParseTimestamp decodes one JSON timestamp value: an epoch number, a numeric
// string or a date-time string. The result is in UTC.
func ParseTimestamp(data json.RawMessage) (time.Time, bool) {
	var n json.Number
	if json.Unmarshal(data, &n) == nil {
		return epochTime(n.String())
	}
	var s string
	if json.Unmarshal(data, &s) != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if t, ok := epochTime(s); ok {
		return t, true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// epochTime interprets a number as unix seconds, or unix millis when it is
// too large to be a plausible seconds value.
func epochTime(s string) (time.Time, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return time.Time{}, false
	}
	if v >= 1e12 {
		return time.UnixMilli(int64(v)).UTC(), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func titleFrom(fields map[string]json.RawMessage) string {
	if s := stringField(fields, "chatTitle", "chat_title", "conversationTitle", "title"); s != "" {
		return s
	}
	if data, ok := fields["chat"]; ok {
		var chat struct {
			Title string `json:"title"`
		}
		if json.Unmarshal(data, &chat) == nil {
			return chat.Title
		}
	}
	return ""
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}

func fallbackName(roomID string) string {
	return "Chat " + roomID
}
