package archive

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/model"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	"github.com/chirino/chat-archive/internal/security"
)

// SearchResult holds the rooms matching a query.
type SearchResult struct {
	Query   string            `json:"query"`
	Hits    []model.SearchHit `json:"hits"`
	Scanned int               `json:"scanned"`
	Failed  int               `json:"failed"`
}

// Scanner runs a linear full-text scan over the search tier. That tier is
// maintained separately from the grouped and per-message tiers, so results
// can disagree with the room listing.
type Scanner struct {
	store  registryblob.Store
	layout Layout
}

func NewScanner(store registryblob.Store, layout Layout) *Scanner {
	return &Scanner{store: store, layout: layout}
}

// Search returns rooms whose messages contain query, case-insensitively,
// ordered by match count.
func (s *Scanner) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &registryblob.ValidationError{Field: "query", Message: "must not be empty"}
	}
	needle := strings.ToLower(query)

	prefix := s.layout.SearchPrefix()
	objects, err := s.store.List(ctx, prefix, 0)
	if err != nil {
		return nil, &registryblob.StoreError{Op: "list", Key: prefix, Err: err}
	}

	result := &SearchResult{Query: query, Hits: []model.SearchHit{}}
	for _, obj := range objects {
		roomID, ok := s.layout.RoomFromSearchKey(obj.Key)
		if !ok {
			continue
		}
		result.Scanned++
		raw, found, err := s.store.GetJSON(ctx, obj.Key)
		if err != nil || !found {
			result.Failed++
			log.Warn("Skipping unreadable search document", "key", obj.Key, "err", err)
			continue
		}
		doc, err := parseDocument(raw)
		if err != nil {
			result.Failed++
			log.Warn("Skipping undecodable search document", "key", obj.Key, "err", err)
			continue
		}

		messages := doc.decodeMessages()
		hit := model.SearchHit{RoomID: roomID, RoomName: displayName(roomID, messages, doc.title())}
		for _, m := range messages {
			if !strings.Contains(strings.ToLower(m.Text), needle) {
				continue
			}
			hit.MatchCount++
			hit.LastMatch = preview(m.Text)
			hit.LastMatchAt = m.Timestamp
		}
		if hit.MatchCount > 0 {
			result.Hits = append(result.Hits, hit)
		}
	}

	sort.SliceStable(result.Hits, func(i, j int) bool {
		return result.Hits[i].MatchCount > result.Hits[j].MatchCount
	})
	security.RecordSkipped("search", result.Failed)
	return result, nil
}
