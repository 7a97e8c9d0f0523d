package archive

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/model"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
)

// Writer persists post-unsend state back to the archive.
type Writer struct {
	store registryblob.Store
}

func NewWriter(store registryblob.Store) *Writer {
	return &Writer{store: store}
}

// Remove drops the message at index from the resolved room and writes the
// result back to the key and tier the room was read from.
//
// Grouped and legacy documents are overwritten in full; a concurrent writer to
// the same key between Resolve and Remove loses its update. Per-message rooms
// delete the single file that held the message.
func (w *Writer) Remove(ctx context.Context, res *Resolution, index int) error {
	if index < 0 || index >= len(res.Messages) {
		return fmt.Errorf("archive: message index %d out of range for %s", index, res.SourceKey)
	}

	switch res.Tier {
	case model.TierGrouped, model.TierLegacy:
		if res.doc == nil || index >= len(res.doc.messages) {
			return fmt.Errorf("archive: %s has no source document", res.SourceKey)
		}
		data, err := res.doc.without(index).encode()
		if err != nil {
			return fmt.Errorf("archive: encode %s: %w", res.SourceKey, err)
		}
		if err := w.store.PutJSON(ctx, res.SourceKey, data); err != nil {
			return &registryblob.StoreError{Op: "put", Key: res.SourceKey, Err: err}
		}
	case model.TierPerMessage:
		key := res.Messages[index].Key
		if key == "" {
			return fmt.Errorf("archive: per-message entry %d of %s has no key", index, res.SourceKey)
		}
		if err := w.store.Delete(ctx, key); err != nil {
			return &registryblob.StoreError{Op: "delete", Key: key, Err: err}
		}
	default:
		return fmt.Errorf("archive: unknown tier %q", res.Tier)
	}

	log.Info("Archive rewritten", "room", res.Room.ID, "tier", res.Tier, "key", res.SourceKey, "removedIndex", index)
	return nil
}
