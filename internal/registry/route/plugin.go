package route

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chirino/chat-archive/internal/archive"
	"github.com/chirino/chat-archive/internal/model"
	"github.com/chirino/chat-archive/internal/unsend"
	"github.com/gin-gonic/gin"
)

// Archive is the operator surface that main route plugins expose over HTTP.
type Archive interface {
	ListRooms(ctx context.Context) (*archive.RoomList, error)
	GetRoom(ctx context.Context, roomID string) (*model.RoomView, error)
	DeleteBotMessage(ctx context.Context, roomID string, target unsend.Target) (*unsend.Result, error)
	Search(ctx context.Context, query string) (*archive.SearchResult, error)
}

// Deps is what a route plugin may mount against. Management plugins receive
// a zero Deps.
type Deps struct {
	Archive Archive
	// Auth authenticates operators; nil means no authentication.
	Auth gin.HandlerFunc
}

// AuthOrPass returns Auth, or a pass-through handler when Auth is nil.
func (d Deps) AuthOrPass() gin.HandlerFunc {
	if d.Auth != nil {
		return d.Auth
	}
	return func(c *gin.Context) { c.Next() }
}

// RouterLoader initializes routes on the gin engine.
type RouterLoader func(r *gin.Engine, deps Deps) error

// RouteType distinguishes which server a plugin's routes belong to.
type RouteType int

const (
	// RouteTypeMain registers routes on the main API server.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers routes on the management server (health, readiness, metrics).
	// When no dedicated management port is configured, these are mounted on the main server.
	RouteTypeManagement
)

// Plugin is a named set of routes mounted in Order.
type Plugin struct {
	Name   string
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	mu      sync.Mutex
	plugins []Plugin
)

// Register adds a route plugin. Called from init() in plugin packages.
// Registering the same name twice panics.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	for _, existing := range plugins {
		if existing.Name == p.Name {
			panic(fmt.Sprintf("route plugin %q registered twice", p.Name))
		}
	}
	plugins = append(plugins, p)
	sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Order < plugins[j].Order })
}

// Names returns the registered plugin names in mount order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

func loaders(t RouteType) []RouterLoader {
	mu.Lock()
	defer mu.Unlock()
	var out []RouterLoader
	for _, p := range plugins {
		if p.Type == t {
			out = append(out, p.Loader)
		}
	}
	return out
}

// MountAll mounts every plugin of type t on r.
func MountAll(r *gin.Engine, t RouteType, deps Deps) error {
	for _, loader := range loaders(t) {
		if err := loader(r, deps); err != nil {
			return err
		}
	}
	return nil
}
