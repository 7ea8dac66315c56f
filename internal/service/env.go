// Package service holds the business rules of the env store: name validation,
// server-assigned timestamps and API key checks. Persistence is delegated to an
// EnvRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/envmanager/internal/models"
)

var (
	// ErrInvalidName is returned when a project or environment name fails validation.
	ErrInvalidName = errors.New("invalid name")
	// ErrVariablesRequired is returned when a save carries no variables object.
	ErrVariablesRequired = errors.New("variables object is required")
)

// EnvRepository defines the persistence operations needed by the EnvService.
type EnvRepository interface {
	// GetEnv returns the stored record or repository.ErrNotFound.
	GetEnv(ctx context.Context, project, env string) (*models.EnvData, error)
	// SaveEnv replaces the stored record.
	SaveEnv(ctx context.Context, project, env string, data models.EnvData) error
	ListProjects(ctx context.Context) ([]string, error)
	ListEnvironments(ctx context.Context, project string) ([]string, error)
	DeleteProject(ctx context.Context, project string) error
}

// EnvService implements the env store operations on top of an EnvRepository.
type EnvService struct {
	repo EnvRepository
	// Now is the clock used for lastModified. Defaults to time.Now.
	Now func() time.Time
}

// NewEnvService constructs an EnvService with the provided repository.
func NewEnvService(repo EnvRepository) *EnvService {
	return &EnvService{repo: repo, Now: time.Now}
}

func checkNames(names ...string) error {
	for _, n := range names {
		if !models.ValidName(n) {
			return fmt.Errorf("%w: %q", ErrInvalidName, n)
		}
	}
	return nil
}

// ListProjects returns all project names.
func (s *EnvService) ListProjects(ctx context.Context) ([]string, error) {
	return s.repo.ListProjects(ctx)
}

// ListEnvironments returns the environment names of project.
func (s *EnvService) ListEnvironments(ctx context.Context, project string) ([]string, error) {
	if err := checkNames(project); err != nil {
		return nil, err
	}
	return s.repo.ListEnvironments(ctx, project)
}

// GetEnv returns the full record of one environment.
func (s *EnvService) GetEnv(ctx context.Context, project, env string) (*models.EnvData, error) {
	if err := checkNames(project, env); err != nil {
		return nil, err
	}
	return s.repo.GetEnv(ctx, project, env)
}

// Status returns only the lastModified of one environment.
func (s *EnvService) Status(ctx context.Context, project, env string) (*models.EnvStatus, error) {
	data, err := s.GetEnv(ctx, project, env)
	if err != nil {
		return nil, err
	}
	st := data.Status()
	return &st, nil
}

// SaveEnv replaces the variable set of an environment and stamps it with the
// current time. The record as stored is returned.
func (s *EnvService) SaveEnv(ctx context.Context, project, env string, vars map[string]string) (*models.EnvData, error) {
	if err := checkNames(project, env); err != nil {
		return nil, err
	}
	if vars == nil {
		return nil, ErrVariablesRequired
	}

	data := models.EnvData{
		LastModified: s.Now().UTC().Truncate(time.Millisecond),
		Variables:    vars,
	}
	if err := s.repo.SaveEnv(ctx, project, env, data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DeleteProject removes a project and all of its environments.
func (s *EnvService) DeleteProject(ctx context.Context, project string) error {
	if err := checkNames(project); err != nil {
		return err
	}
	return s.repo.DeleteProject(ctx, project)
}
