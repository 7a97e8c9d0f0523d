package disabled

import (
	"context"

	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
)

func init() {
	registryplatform.Register(registryplatform.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (registryplatform.Messenger, error) {
			return &disabledMessenger{}, nil
		},
	})
}

// disabledMessenger rejects every delete, so unsend never touches the archive.
type disabledMessenger struct{}

func (d *disabledMessenger) Name() string { return "none" }

func (d *disabledMessenger) DeleteMessage(_ context.Context, _ string, _ int64) (registryplatform.DeleteResult, error) {
	return registryplatform.DeleteResult{OK: false, Description: "messaging platform disabled"}, nil
}

var _ registryplatform.Messenger = (*disabledMessenger)(nil)
