package archive

import (
	"strings"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
)

// Layout maps rooms to object keys for every archive tier.
//
//	grouped:     {prefix}chats/{roomId}.json
//	legacy:      {prefix}history/chat_{roomId}.json
//	per-message: {prefix}messages/{roomId}/{file}.json
//	search:      {prefix}conversations/{roomId}.json
type Layout struct {
	prefix string
}

// NewLayout returns a Layout rooted at prefix, which is either empty or ends with "/".
func NewLayout(prefix string) Layout {
	return Layout{prefix: prefix}
}

func (l Layout) GroupedPrefix() string { return l.prefix + "chats/" }

func (l Layout) GroupedKey(roomID string) string { return l.GroupedPrefix() + roomID + ".json" }

func (l Layout) LegacyKey(roomID string) string { return l.prefix + "history/chat_" + roomID + ".json" }

func (l Layout) PerMessagePrefix() string { return l.prefix + "messages/" }

func (l Layout) PerMessageRoomPrefix(roomID string) string {
	return l.PerMessagePrefix() + roomID + "/"
}

func (l Layout) SearchPrefix() string { return l.prefix + "conversations/" }

// RoomFromGroupedKey extracts the room id from a grouped-tier key.
func (l Layout) RoomFromGroupedKey(key string) (string, bool) {
	return flatRoomID(key, l.GroupedPrefix())
}

// RoomFromSearchKey extracts the room id from a search-tier key.
func (l Layout) RoomFromSearchKey(key string) (string, bool) {
	return flatRoomID(key, l.SearchPrefix())
}

// RoomFromPerMessageKey extracts the room id path segment from a per-message key.
func (l Layout) RoomFromPerMessageKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, l.PerMessagePrefix())
	if !ok {
		return "", false
	}
	roomID, file, ok := strings.Cut(rest, "/")
	if !ok || roomID == "" || file == "" {
		return "", false
	}
	return roomID, true
}

func flatRoomID(key, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", false
	}
	roomID, ok := strings.CutSuffix(rest, ".json")
	if !ok || roomID == "" || strings.Contains(roomID, "/") {
		return "", false
	}
	return roomID, true
}

// ValidateRoomID rejects ids that cannot be mapped to a single key.
func ValidateRoomID(roomID string) error {
	switch {
	case strings.TrimSpace(roomID) == "":
		return &registryblob.ValidationError{Field: "roomId", Message: "must not be empty"}
	case strings.ContainsAny(roomID, "/\\"), roomID == ".", roomID == "..":
		return &registryblob.ValidationError{Field: "roomId", Message: "must be a single path segment"}
	}
	return nil
}
