package service

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/archive"
	"github.com/chirino/chat-archive/internal/config"
	"github.com/chirino/chat-archive/internal/model"
	blobmetrics "github.com/chirino/chat-archive/internal/plugin/blob/metrics"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
	"github.com/chirino/chat-archive/internal/unsend"
)

// Archive is the operator-facing surface of the chat archive: list rooms,
// open a room, search and unsend bot messages. Every call reads the store
// afresh; nothing is cached between calls.
type Archive struct {
	store       registryblob.Store
	layout      archive.Layout
	aggregator  *archive.Aggregator
	reader      *archive.Reader
	scanner     *archive.Scanner
	coordinator *unsend.Coordinator
}

// New wires an Archive over store and messenger using the layout and limits
// in cfg. A nil cfg uses DefaultConfig.
func New(cfg *config.Config, store registryblob.Store, messenger registryplatform.Messenger) *Archive {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	layout := archive.NewLayout(cfg.ResolvedArchivePrefix())
	reader := archive.NewReader(store, layout, cfg.PerMessageLoadLimit)
	return &Archive{
		store:       store,
		layout:      layout,
		aggregator:  archive.NewAggregator(store, layout, cfg.PerMessageScanCap),
		reader:      reader,
		scanner:     archive.NewScanner(store, layout),
		coordinator: unsend.NewCoordinator(reader, archive.NewWriter(store), messenger),
	}
}

// Open loads the blob store and messaging platform plugins named in cfg and
// returns an Archive over them. cfg must also be reachable through ctx for
// plugin loaders.
func Open(ctx context.Context, cfg *config.Config) (*Archive, error) {
	ctx = config.WithContext(ctx, cfg)

	storeLoader, err := registryblob.Select(cfg.BlobType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	store = blobmetrics.Wrap(store)

	platformLoader, err := registryplatform.Select(cfg.PlatformType)
	if err != nil {
		return nil, err
	}
	messenger, err := platformLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging platform: %w", err)
	}

	log.Info("Archive opened",
		"blob", cfg.BlobType,
		"bucket", cfg.S3Bucket,
		"prefix", cfg.ResolvedArchivePrefix(),
		"platform", messenger.Name(),
	)
	return New(cfg, store, messenger), nil
}

func (a *Archive) ListRooms(ctx context.Context) (*archive.RoomList, error) {
	return a.aggregator.ListRooms(ctx)
}

func (a *Archive) GetRoom(ctx context.Context, roomID string) (*model.RoomView, error) {
	return a.reader.ResolveRoom(ctx, roomID)
}

func (a *Archive) DeleteBotMessage(ctx context.Context, roomID string, target unsend.Target) (*unsend.Result, error) {
	return a.coordinator.DeleteBotMessage(ctx, roomID, target)
}

func (a *Archive) Search(ctx context.Context, query string) (*archive.SearchResult, error) {
	return a.scanner.Search(ctx, query)
}

// Ping checks that the blob store answers a bounded listing.
func (a *Archive) Ping(ctx context.Context) error {
	if _, err := a.store.List(ctx, a.layout.GroupedPrefix(), 1); err != nil {
		return &registryblob.StoreError{Op: "list", Key: a.layout.GroupedPrefix(), Err: err}
	}
	return nil
}
