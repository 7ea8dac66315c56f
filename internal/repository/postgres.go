package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/envmanager/internal/models"
)

// PostgresEnvRepository implements environment storage against a PostgreSQL database.
// Deleted projects are soft-deleted and purged later by db.StartSoftDeleteCleaner.
type PostgresEnvRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresEnvRepository creates a new PostgresEnvRepository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance with the schema from db.InitPostgres.
func NewPostgresEnvRepository(db *sql.DB) *PostgresEnvRepository {
	return &PostgresEnvRepository{DB: db}
}

// GetEnv fetches a single environment record.
//
//	ctx:     context for cancellation and deadlines
//	project: project name
//	env:     environment name
//
// Returns ErrNotFound when no live record exists.
func (r *PostgresEnvRepository) GetEnv(ctx context.Context, project, env string) (*models.EnvData, error) {
	var (
		raw  []byte
		data models.EnvData
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT variables, last_modified FROM environments
		WHERE project = $1 AND name = $2 AND deleted = false
	`, project, env).Scan(&raw, &data.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetEnv failed: %w", err)
	}

	if err := json.Unmarshal(raw, &data.Variables); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	if data.Variables == nil {
		data.Variables = map[string]string{}
	}
	data.LastModified = data.LastModified.UTC()
	return &data, nil
}

// SaveEnv inserts the environment or replaces the existing record.
// Saving into a soft-deleted project revives it.
func (r *PostgresEnvRepository) SaveEnv(ctx context.Context, project, env string, data models.EnvData) error {
	vars := data.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO environments (project, name, variables, last_modified, deleted)
		VALUES ($1, $2, $3, $4, false)
		ON CONFLICT (project, name) DO UPDATE SET
			variables = EXCLUDED.variables,
			last_modified = EXCLUDED.last_modified,
			deleted = false
	`, project, env, raw, data.LastModified)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// ListProjects returns the distinct names of projects with at least one live environment.
func (r *PostgresEnvRepository) ListProjects(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `
		SELECT DISTINCT project FROM environments WHERE deleted = false ORDER BY project
	`)
}

// ListEnvironments returns the live environment names of a project.
func (r *PostgresEnvRepository) ListEnvironments(ctx context.Context, project string) ([]string, error) {
	return r.queryNames(ctx, `
		SELECT name FROM environments WHERE project = $1 AND deleted = false ORDER BY name
	`, project)
}

// DeleteProject marks every environment of the project as deleted.
func (r *PostgresEnvRepository) DeleteProject(ctx context.Context, project string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE environments SET deleted = true, last_modified = NOW() WHERE project = $1
	`, project)
	if err != nil {
		return fmt.Errorf("DeleteProject failed: %w", err)
	}
	return nil
}

func (r *PostgresEnvRepository) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return names, nil
}
