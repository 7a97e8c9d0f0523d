package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ObjectInfo describes one stored object as reported by List.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store defines the interface for archive object storage backends.
type Store interface {
	// List returns objects under prefix in key order. limit <= 0 lists everything.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	// GetJSON returns the stored document. A missing key returns ok=false and no error.
	GetJSON(ctx context.Context, key string) (doc json.RawMessage, ok bool, err error)
	// PutJSON overwrites key with doc.
	PutJSON(ctx context.Context, key string, doc json.RawMessage) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Loader creates a Store from config.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a blob store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a blob store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered blob store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named blob store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown blob store %q; valid: %v", name, Names())
}
