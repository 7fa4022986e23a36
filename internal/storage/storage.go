package storage

import (
	"context"

	"pausee/internal/config"
	"pausee/internal/engine"
)

// Open returns the configured paused-state backend and a close func.
func Open(ctx context.Context, cfg config.Config) (engine.StateStore, func(), error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		pg, err := NewPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return NewFileStore(cfg.Storage.Path), func() {}, nil
}
