package bootstrap

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/plot-registry/config"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
)

// OpenStore opens the plot store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		pool, err := OpenDB(ctx, DBOptions{
			DSN:      cfg.Database.ConnString(),
			MaxConns: int32(cfg.Database.MaxConns),
			MinConns: int32(cfg.Database.MinConns),
		})
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
