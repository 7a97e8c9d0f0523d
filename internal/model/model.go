package model

import (
	"encoding/json"
	"regexp"
	"time"
)

// RoomKind distinguishes group chats from private chats.
type RoomKind string

const (
	RoomKindGroup   RoomKind = "group"
	RoomKindPrivate RoomKind = "private"
)

var groupIDPattern = regexp.MustCompile(`^-\d`)

// KindForID derives the room kind from the chat id. Group chats carry a
// negative numeric id.
func KindForID(id string) RoomKind {
	if groupIDPattern.MatchString(id) {
		return RoomKindGroup
	}
	return RoomKindPrivate
}

// Tier identifies the storage layout a room was read from.
type Tier string

const (
	TierGrouped    Tier = "grouped"
	TierLegacy     Tier = "legacy"
	TierPerMessage Tier = "per-message"
)

// Room is the normalized view of one conversation. It is recomputed from the
// archive on every read.
type Room struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"displayName"`
	Kind               RoomKind  `json:"kind"`
	MessageCount       int       `json:"messageCount"`
	LastActivity       time.Time `json:"lastActivity"`
	LastMessagePreview string    `json:"lastMessagePreview"`
}

// Message is a normalized archived message.
type Message struct {
	Text            string    `json:"text"`
	Sender          string    `json:"sender"`
	Timestamp       time.Time `json:"timestamp"`
	TimestampApprox bool      `json:"timestampApprox,omitempty"`
	IsBot           bool      `json:"isBot"`
	MessageID       *int64    `json:"messageId,omitempty"`
	ChatTitle       string    `json:"chatTitle,omitempty"`
	// Key is the object key the message was read from when it lives in its
	// own file (per-message tier).
	Key string `json:"-"`
	// Raw holds the stored bytes so rewrites leave untouched messages as-is.
	Raw json.RawMessage `json:"-"`
}

// HasMessageID reports whether the message carries a platform message id.
func (m Message) HasMessageID() bool {
	return m.MessageID != nil
}

// RoomView is a resolved room together with the archive location it came
// from. Mutations must target SourceKey/Tier.
type RoomView struct {
	Room        Room      `json:"room"`
	Messages    []Message `json:"messages"`
	SourceKey   string    `json:"sourceKey"`
	Tier        Tier      `json:"tier"`
	Note        string    `json:"note,omitempty"`
	TotalFiles  int       `json:"totalFiles,omitempty"`
	LoadedFiles int       `json:"loadedFiles,omitempty"`
	FailedFiles int       `json:"failedFiles,omitempty"`
}

// SearchHit is one room matching a search query.
type SearchHit struct {
	RoomID      string    `json:"roomId"`
	RoomName    string    `json:"roomName"`
	MatchCount  int       `json:"matchCount"`
	LastMatch   string    `json:"lastMatch"`
	LastMatchAt time.Time `json:"lastMatchAt"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
