package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/offloader/service/internal/settings"
)

// Builder constructs a Client for a settings snapshot.
type Builder func(ctx context.Context, cfg settings.StorageConfig) (Client, error)

// Factory hands out one cached Client per configuration snapshot. The cached
// client is rebuilt as soon as a different snapshot is requested or
// Invalidate is called.
type Factory struct {
	build Builder

	mu     sync.Mutex
	client Client
	cfg    settings.StorageConfig
}

// NewFactory returns a Factory using build. A nil build selects the SDK
// driver named by the snapshot.
func NewFactory(build Builder) *Factory {
	if build == nil {
		build = Build
	}
	return &Factory{build: build}
}

// Build creates a Client for the driver named in cfg.
func Build(ctx context.Context, cfg settings.StorageConfig) (Client, error) {
	switch cfg.Driver {
	case settings.DriverMinio:
		return NewMinioClient(cfg)
	case settings.DriverS3, "":
		return NewS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: driver %q", settings.ErrInvalidValue, cfg.Driver)
	}
}

// Client returns the cached client for cfg, building it when needed.
func (f *Factory) Client(ctx context.Context, cfg settings.StorageConfig) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil && f.cfg == cfg {
		return f.client, nil
	}

	client, err := f.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.client, f.cfg = client, cfg
	return client, nil
}

// Invalidate drops the cached client.
func (f *Factory) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = nil
	f.cfg = settings.StorageConfig{}
}
