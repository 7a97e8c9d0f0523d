package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/model"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/chirino/chat-archive/internal/security"
)

// DefaultLoadLimit is how many per-message files are loaded when a room is
// reconstructed from the per-message tier.
const DefaultLoadLimit = 10

// Resolution is a resolved room plus the document it was decoded from. The
// document is kept so a rewrite leaves everything but the removed message
// untouched.
type Resolution struct {
	model.RoomView
	doc *document
}

// Reader resolves a room id into normalized messages by walking the archive
// tiers in priority order: grouped, legacy, per-message.
type Reader struct {
	store     registryblob.Store
	layout    Layout
	loadLimit int
}

// NewReader returns a Reader. loadLimit <= 0 uses DefaultLoadLimit.
func NewReader(store registryblob.Store, layout Layout, loadLimit int) *Reader {
	if loadLimit <= 0 {
		loadLimit = DefaultLoadLimit
	}
	return &Reader{store: store, layout: layout, loadLimit: loadLimit}
}

// ResolveRoom returns the room view for roomID.
func (r *Reader) ResolveRoom(ctx context.Context, roomID string) (*model.RoomView, error) {
	res, err := r.Resolve(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &res.RoomView, nil
}

// Resolve returns the room together with the source it was read from.
// It returns *NotFoundError when no tier holds the room and *StoreError when
// the store itself fails.
func (r *Reader) Resolve(ctx context.Context, roomID string) (*Resolution, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}

	for _, tier := range []struct {
		tier model.Tier
		key  string
	}{
		{model.TierGrouped, r.layout.GroupedKey(roomID)},
		{model.TierLegacy, r.layout.LegacyKey(roomID)},
	} {
		res, err := r.loadDocument(ctx, roomID, tier.tier, tier.key)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	res, err := r.loadPerMessage(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return nil, &registryblob.NotFoundError{Resource: "chat", ID: roomID}
}

// loadDocument returns nil, nil when the key is absent or unreadable so the
// caller moves on to the next tier.
func (r *Reader) loadDocument(ctx context.Context, roomID string, tier model.Tier, key string) (*Resolution, error) {
	raw, ok, err := r.store.GetJSON(ctx, key)
	if err != nil {
		if errors.Is(err, registryblob.ErrInvalidJSON) {
			log.Warn("Skipping corrupt archive document", "room", roomID, "tier", tier, "key", key, "err", err)
			security.RecordSkipped(string(tier), 1)
			return nil, nil
		}
		return nil, &registryblob.StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}
	doc, err := parseDocument(raw)
	if err != nil {
		log.Warn("Skipping undecodable archive document", "room", roomID, "tier", tier, "key", key, "err", err)
		security.RecordSkipped(string(tier), 1)
		return nil, nil
	}

	messages := doc.decodeMessages()
	log.Debug("Room resolved", "room", roomID, "tier", tier, "key", key, "messages", len(messages))
	return &Resolution{
		RoomView: model.RoomView{
			Room:      buildRoom(roomID, messages, doc.title()),
			Messages:  messages,
			SourceKey: key,
			Tier:      tier,
		},
		doc: doc,
	}, nil
}

func (r *Reader) loadPerMessage(ctx context.Context, roomID string) (*Resolution, error) {
	prefix := r.layout.PerMessageRoomPrefix(roomID)
	objects, err := r.store.List(ctx, prefix, 0)
	if err != nil {
		return nil, &registryblob.StoreError{Op: "list", Key: prefix, Err: err}
	}
	if len(objects) == 0 {
		return nil, nil
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.Before(objects[j].LastModified)
	})
	selected := objects
	if len(selected) > r.loadLimit {
		selected = selected[len(selected)-r.loadLimit:]
	}

	messages := make([]model.Message, 0, len(selected))
	failed := 0
	for _, obj := range selected {
		raw, ok, err := r.store.GetJSON(ctx, obj.Key)
		if err != nil || !ok {
			failed++
			log.Warn("Skipping unreadable per-message file", "room", roomID, "key", obj.Key, "err", err)
			continue
		}
		msg := decodeMessage(raw)
		msg.Key = obj.Key
		if msg.Timestamp.IsZero() {
			msg.Timestamp = obj.LastModified
			msg.TimestampApprox = true
		}
		messages = append(messages, msg)
	}
	security.RecordSkipped(string(model.TierPerMessage), failed)

	room := buildRoom(roomID, messages, "")
	room.MessageCount = len(objects)

	note := fmt.Sprintf("showing %d of %d stored messages", len(messages), len(objects))
	if failed > 0 {
		note += fmt.Sprintf(" (%d unreadable)", failed)
	}
	log.Debug("Room reconstructed from per-message files", "room", roomID, "total", len(objects), "loaded", len(messages), "failed", failed)
	return &Resolution{
		RoomView: model.RoomView{
			Room:        room,
			Messages:    messages,
			SourceKey:   prefix,
			Tier:        model.TierPerMessage,
			Note:        note,
			TotalFiles:  len(objects),
			LoadedFiles: len(messages),
			FailedFiles: failed,
		},
	}, nil
}

// buildRoom derives display metadata from a message list.
func buildRoom(roomID string, messages []model.Message, docTitle string) model.Room {
	room := model.Room{
		ID:           roomID,
		DisplayName:  displayName(roomID, messages, docTitle),
		Kind:         model.KindForID(roomID),
		MessageCount: len(messages),
	}
	for _, m := range messages {
		if m.Timestamp.After(room.LastActivity) {
			room.LastActivity = m.Timestamp
		}
	}
	if len(messages) > 0 {
		room.LastMessagePreview = preview(messages[len(messages)-1].Text)
	}
	return room
}

// displayName prefers the first message carrying a conversation title, then
// the document-level title, then a synthesized label.
func displayName(roomID string, messages []model.Message, docTitle string) string {
	for _, m := range messages {
		if m.ChatTitle != "" {
			return m.ChatTitle
		}
	}
	if docTitle != "" {
		return docTitle
	}
	return fallbackName(roomID)
}
