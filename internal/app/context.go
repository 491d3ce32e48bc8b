package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scrumline/internal/config"
	"scrumline/internal/db"
	"scrumline/internal/migrate"
	"scrumline/internal/repo"
	"scrumline/internal/seed"
)

// OpenWorkspace opens the workspace database, applies migrations and
// installs the project catalog if the database is fresh.
func OpenWorkspace(ctx context.Context, workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := seed.Seed(ctx, repo.Repo{DB: conn}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return conn, nil
}

// ResolveConfig returns the simulation tuning stored for a project,
// falling back to (and persisting) the defaults when none is stored yet.
func ResolveConfig(ctx context.Context, r repo.Repo, projectID string) (*config.Config, error) {
	cfg, err := r.GetProjectConfig(ctx, projectID)
	if err == nil {
		cfg.Project.ID = projectID
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg = config.Default(projectID)
	if err := r.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
		return nil, fmt.Errorf("seed project config: %w", err)
	}
	return cfg, nil
}
