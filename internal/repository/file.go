package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atinyakov/envmanager/internal/envfile"
	"github.com/atinyakov/envmanager/internal/models"
	"github.com/spf13/afero"
)

const envFileExt = ".json"

// FileEnvRepository stores one JSON file per (project, environment) under a data directory:
//
//	<dir>/<project>/<env>.json
//
// Names are expected to be validated by the caller; the repository does not sanitize paths.
type FileEnvRepository struct {
	// Fs is the filesystem the data directory lives on.
	Fs afero.Fs
	// Dir is the root data directory.
	Dir string
}

// NewFileEnvRepository creates a FileEnvRepository rooted at dir on fs.
func NewFileEnvRepository(fs afero.Fs, dir string) *FileEnvRepository {
	return &FileEnvRepository{Fs: fs, Dir: dir}
}

func (r *FileEnvRepository) envPath(project, env string) string {
	return filepath.Join(r.Dir, project, env+envFileExt)
}

// GetEnv reads the environment record. Returns ErrNotFound if the file does not exist.
func (r *FileEnvRepository) GetEnv(_ context.Context, project, env string) (*models.EnvData, error) {
	data, err := afero.ReadFile(r.Fs, r.envPath(project, env))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read env: %w", err)
	}

	var out models.EnvData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode env %s/%s: %w", project, env, err)
	}
	if out.Variables == nil {
		out.Variables = map[string]string{}
	}
	return &out, nil
}

// SaveEnv replaces the environment record. Each save writes its own uniquely
// named temporary file and renames it into place, so readers never see a
// partial record and concurrent saves end with one complete winner.
func (r *FileEnvRepository) SaveEnv(_ context.Context, project, env string, data models.EnvData) error {
	projectDir := filepath.Join(r.Dir, project)
	if err := r.Fs.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode env: %w", err)
	}

	if err := envfile.WriteAtomic(r.Fs, r.envPath(project, env), b); err != nil {
		return fmt.Errorf("write env: %w", err)
	}
	return nil
}

// ListProjects returns the names of all project directories, sorted.
func (r *FileEnvRepository) ListProjects(_ context.Context) ([]string, error) {
	if err := r.Fs.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	entries, err := afero.ReadDir(r.Fs, r.Dir)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListEnvironments returns the environment names of a project, sorted.
// A project without a directory has no environments.
func (r *FileEnvRepository) ListEnvironments(_ context.Context, project string) ([]string, error) {
	entries, err := afero.ReadDir(r.Fs, filepath.Join(r.Dir, project))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list environments: %w", err)
	}

	envs := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, envFileExt) {
			continue
		}
		envs = append(envs, strings.TrimSuffix(name, envFileExt))
	}
	sort.Strings(envs)
	return envs, nil
}

// DeleteProject removes the project directory and every environment in it.
func (r *FileEnvRepository) DeleteProject(_ context.Context, project string) error {
	if err := r.Fs.RemoveAll(filepath.Join(r.Dir, project)); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
