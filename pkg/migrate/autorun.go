package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
)

// MaybeRun applies the snapshot-table migrations on boot when the records backend is
// selected. SQLite databases belong to the process and are always migrated; Postgres only
// in dev, where nobody runs cmd/migrate by hand.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.Cart.Backend != config.BackendRecords {
		return nil
	}
	if cfg.DB.Driver != db.DriverSQLite && !cfg.App.IsDev() {
		return nil
	}

	m, err := ForClient(client, cfg.DB.Driver)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver, "dir": m.Dir()})
	logg.Info(ctx, "applying cart snapshot migrations")

	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "cart snapshot migrations applied")
	return nil
}
