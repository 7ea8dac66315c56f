package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/envmanager/internal/models"
)

type mockEnvRepo struct {
	GetEnvFunc           func(ctx context.Context, project, env string) (*models.EnvData, error)
	SaveEnvFunc          func(ctx context.Context, project, env string, data models.EnvData) error
	ListProjectsFunc     func(ctx context.Context) ([]string, error)
	ListEnvironmentsFunc func(ctx context.Context, project string) ([]string, error)
	DeleteProjectFunc    func(ctx context.Context, project string) error
}

func (m *mockEnvRepo) GetEnv(ctx context.Context, project, env string) (*models.EnvData, error) {
	return m.GetEnvFunc(ctx, project, env)
}
func (m *mockEnvRepo) SaveEnv(ctx context.Context, project, env string, data models.EnvData) error {
	return m.SaveEnvFunc(ctx, project, env, data)
}
func (m *mockEnvRepo) ListProjects(ctx context.Context) ([]string, error) {
	return m.ListProjectsFunc(ctx)
}
func (m *mockEnvRepo) ListEnvironments(ctx context.Context, project string) ([]string, error) {
	return m.ListEnvironmentsFunc(ctx, project)
}
func (m *mockEnvRepo) DeleteProject(ctx context.Context, project string) error {
	return m.DeleteProjectFunc(ctx, project)
}

func TestSaveEnv_StampsTime(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	var saved models.EnvData
	repo := &mockEnvRepo{
		SaveEnvFunc: func(ctx context.Context, project, env string, data models.EnvData) error {
			if project != "shop" || env != "prod" {
				t.Errorf("SaveEnv got %s/%s; want shop/prod", project, env)
			}
			saved = data
			return nil
		},
	}
	svc := NewEnvService(repo)
	svc.Now = func() time.Time { return fixed }

	got, err := svc.SaveEnv(context.Background(), "shop", "prod", map[string]string{"A": "1"})
	if err != nil {
		t.Fatalf("SaveEnv returned error: %v", err)
	}
	want := time.Date(2024, 6, 1, 11, 0, 0, 123000000, time.UTC)
	if !got.LastModified.Equal(want) || got.LastModified.Location() != time.UTC {
		t.Errorf("LastModified = %v; want %v", got.LastModified, want)
	}
	if !saved.LastModified.Equal(want) || saved.Variables["A"] != "1" {
		t.Errorf("repository received %+v", saved)
	}
}

func TestSaveEnv_EmptyMapAllowed(t *testing.T) {
	repo := &mockEnvRepo{
		SaveEnvFunc: func(ctx context.Context, project, env string, data models.EnvData) error { return nil },
	}
	got, err := NewEnvService(repo).SaveEnv(context.Background(), "shop", "prod", map[string]string{})
	if err != nil {
		t.Fatalf("SaveEnv returned error: %v", err)
	}
	if got.Variables == nil || len(got.Variables) != 0 {
		t.Errorf("Variables = %#v; want empty map", got.Variables)
	}
}

func TestSaveEnv_NilVariables(t *testing.T) {
	repo := &mockEnvRepo{
		SaveEnvFunc: func(ctx context.Context, project, env string, data models.EnvData) error {
			t.Fatalf("repository must not be called")
			return nil
		},
	}
	_, err := NewEnvService(repo).SaveEnv(context.Background(), "shop", "prod", nil)
	if !errors.Is(err, ErrVariablesRequired) {
		t.Errorf("err = %v; want ErrVariablesRequired", err)
	}
}

func TestInvalidNamesNeverReachRepository(t *testing.T) {
	repo := &mockEnvRepo{} // every func nil: any call panics
	svc := NewEnvService(repo)
	ctx := context.Background()

	bad := []string{"", "../etc", "a b", "a/b", "é"}
	for _, name := range bad {
		if _, err := svc.GetEnv(ctx, name, "prod"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("GetEnv(%q) err = %v", name, err)
		}
		if _, err := svc.GetEnv(ctx, "shop", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("GetEnv(env=%q) err = %v", name, err)
		}
		if _, err := svc.Status(ctx, "shop", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Status(%q) err = %v", name, err)
		}
		if _, err := svc.SaveEnv(ctx, name, "prod", map[string]string{}); !errors.Is(err, ErrInvalidName) {
			t.Errorf("SaveEnv(%q) err = %v", name, err)
		}
		if _, err := svc.ListEnvironments(ctx, name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ListEnvironments(%q) err = %v", name, err)
		}
		if err := svc.DeleteProject(ctx, name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("DeleteProject(%q) err = %v", name, err)
		}
	}
}

func TestStatus_FromStoredRecord(t *testing.T) {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := &mockEnvRepo{
		GetEnvFunc: func(ctx context.Context, project, env string) (*models.EnvData, error) {
			return &models.EnvData{LastModified: modified, Variables: map[string]string{"A": "1"}}, nil
		},
	}
	st, err := NewEnvService(repo).Status(context.Background(), "shop", "prod")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !st.LastModified.Equal(modified) {
		t.Errorf("LastModified = %v; want %v", st.LastModified, modified)
	}
}

func TestStatus_PropagatesRepositoryError(t *testing.T) {
	wantErr := errors.New("not there")
	repo := &mockEnvRepo{
		GetEnvFunc: func(ctx context.Context, project, env string) (*models.EnvData, error) {
			return nil, wantErr
		},
	}
	_, err := NewEnvService(repo).Status(context.Background(), "shop", "prod")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v; want %v", err, wantErr)
	}
}

func TestListAndDeleteDelegate(t *testing.T) {
	var deleted string
	repo := &mockEnvRepo{
		ListProjectsFunc: func(ctx context.Context) ([]string, error) { return []string{"a", "b"}, nil },
		ListEnvironmentsFunc: func(ctx context.Context, project string) ([]string, error) {
			return []string{"local"}, nil
		},
		DeleteProjectFunc: func(ctx context.Context, project string) error {
			deleted = project
			return nil
		},
	}
	svc := NewEnvService(repo)
	ctx := context.Background()

	projects, err := svc.ListProjects(ctx)
	if err != nil || len(projects) != 2 {
		t.Errorf("ListProjects = %v, %v", projects, err)
	}
	envs, err := svc.ListEnvironments(ctx, "a")
	if err != nil || len(envs) != 1 || envs[0] != "local" {
		t.Errorf("ListEnvironments = %v, %v", envs, err)
	}
	if err := svc.DeleteProject(ctx, "a"); err != nil || deleted != "a" {
		t.Errorf("DeleteProject: err=%v deleted=%q", err, deleted)
	}
}
