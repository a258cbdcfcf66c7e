// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/famfin/internal/config"
	"github.com/aristath/famfin/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	entries := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// 1. ledger.db - Investment transactions, the only data that cannot be refetched
		{database.NameLedger, database.ProfileLedger, &container.LedgerDB},
		// 2. app.db - Tasks and reminder state
		{database.NameApp, database.ProfileStandard, &container.AppDB},
		// 3. cache.db - Upstream responses kept for stale fallback
		{database.NameCache, database.ProfileCache, &container.CacheDB},
	}

	for _, entry := range entries {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, entry.name+".db"),
			Profile: entry.profile,
			Name:    entry.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", entry.name, err)
		}
		*entry.target = db

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s database: %w", entry.name, err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")

	return container, nil
}

// databasesByName lists the open databases for maintenance and status reporting
func databasesByName(c *Container) map[string]*database.DB {
	return map[string]*database.DB{
		database.NameLedger: c.LedgerDB,
		database.NameApp:    c.AppDB,
		database.NameCache:  c.CacheDB,
	}
}
