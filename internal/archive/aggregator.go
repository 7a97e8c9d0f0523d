package archive

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/model"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/chirino/chat-archive/internal/security"
)

// DefaultScanCap bounds how many per-message keys are listed when rooms are
// aggregated from the per-message tier.
const DefaultScanCap = 1000

// RoomList is a best-effort snapshot of the archive's rooms.
type RoomList struct {
	Rooms []model.Room `json:"rooms"`
	// Source is the tier the listing was built from.
	Source model.Tier `json:"source"`
	// Scanned is how many objects were considered; Failed how many of them
	// could not be read and were skipped.
	Scanned int `json:"scanned"`
	Failed  int `json:"failed"`
}

// Aggregator builds the room listing.
type Aggregator struct {
	store   registryblob.Store
	layout  Layout
	scanCap int
}

// NewAggregator returns an Aggregator. scanCap <= 0 uses DefaultScanCap.
func NewAggregator(store registryblob.Store, layout Layout, scanCap int) *Aggregator {
	if scanCap <= 0 {
		scanCap = DefaultScanCap
	}
	return &Aggregator{store: store, layout: layout, scanCap: scanCap}
}

// ListRooms returns one room per conversation, most recently active first.
// Grouped documents are used when any exist; otherwise rooms are derived from
// per-message file metadata.
func (a *Aggregator) ListRooms(ctx context.Context) (*RoomList, error) {
	prefix := a.layout.GroupedPrefix()
	objects, err := a.store.List(ctx, prefix, 0)
	if err != nil {
		return nil, &registryblob.StoreError{Op: "list", Key: prefix, Err: err}
	}

	// Stray objects under the grouped prefix do not count as grouped documents.
	list := a.fromGrouped(ctx, objects)
	if list.Scanned == 0 {
		list, err = a.fromPerMessage(ctx)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(list.Rooms, func(i, j int) bool {
		return list.Rooms[i].LastActivity.After(list.Rooms[j].LastActivity)
	})
	if list.Failed > 0 {
		log.Warn("Room listing skipped unreadable objects", "source", list.Source, "failed", list.Failed, "scanned", list.Scanned)
	}
	security.RecordSkipped("rooms", list.Failed)
	return list, nil
}

func (a *Aggregator) fromGrouped(ctx context.Context, objects []registryblob.ObjectInfo) *RoomList {
	list := &RoomList{Source: model.TierGrouped, Rooms: []model.Room{}}
	for _, obj := range objects {
		roomID, ok := a.layout.RoomFromGroupedKey(obj.Key)
		if !ok {
			continue
		}
		list.Scanned++
		raw, found, err := a.store.GetJSON(ctx, obj.Key)
		if err != nil || !found {
			list.Failed++
			log.Warn("Skipping unreadable grouped document", "key", obj.Key, "err", err)
			continue
		}
		doc, err := parseDocument(raw)
		if err != nil {
			list.Failed++
			log.Warn("Skipping undecodable grouped document", "key", obj.Key, "err", err)
			continue
		}
		room := buildRoom(roomID, doc.decodeMessages(), doc.title())
		if room.LastActivity.IsZero() {
			room.LastActivity = obj.LastModified
		}
		list.Rooms = append(list.Rooms, room)
	}
	return list
}

func (a *Aggregator) fromPerMessage(ctx context.Context) (*RoomList, error) {
	prefix := a.layout.PerMessagePrefix()
	objects, err := a.store.List(ctx, prefix, a.scanCap)
	if err != nil {
		return nil, &registryblob.StoreError{Op: "list", Key: prefix, Err: err}
	}

	list := &RoomList{Source: model.TierPerMessage, Rooms: []model.Room{}}
	index := map[string]int{}
	for _, obj := range objects {
		roomID, ok := a.layout.RoomFromPerMessageKey(obj.Key)
		if !ok {
			continue
		}
		list.Scanned++
		i, seen := index[roomID]
		if !seen {
			i = len(list.Rooms)
			index[roomID] = i
			list.Rooms = append(list.Rooms, model.Room{
				ID:          roomID,
				DisplayName: fallbackName(roomID),
				Kind:        model.KindForID(roomID),
			})
		}
		room := &list.Rooms[i]
		room.MessageCount++
		if obj.LastModified.After(room.LastActivity) {
			room.LastActivity = obj.LastModified
		}
	}
	if len(objects) >= a.scanCap {
		log.Warn("Per-message scan cap reached; room counts may be partial", "cap", a.scanCap)
	}
	return list, nil
}
