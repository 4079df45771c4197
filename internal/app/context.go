package app

import (
	"database/sql"
	"fmt"

	"scrapforge/internal/backend"
	"scrapforge/internal/config"
	"scrapforge/internal/db"
	"scrapforge/internal/engine"
	"scrapforge/internal/migrate"
)

// ResolveConfig loads scrapforge.yml from the workspace, falling back
// to the built-in default when the file is absent.
func ResolveConfig(workspace, workshopID string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if workshopID == "" {
			workshopID = "workshop"
		}
		cfg = config.Default(workshopID)
	}
	return cfg, nil
}

// Open opens the workspace database with migrations applied and wires
// a ready engine around it.
func Open(workspace, workshopID string) (*sql.DB, engine.Engine, error) {
	cfg, err := ResolveConfig(workspace, workshopID)
	if err != nil {
		return nil, engine.Engine{}, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg, backend.NewHTTPClient(cfg))
	return conn, eng, nil
}
