package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/envmanager/internal/middleware"
	"github.com/atinyakov/envmanager/internal/models"
	"github.com/atinyakov/envmanager/internal/repository"
	"github.com/atinyakov/envmanager/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// APIVersion is reported by the health endpoint.
const APIVersion = "1.0.0"

const (
	msgInvalidProject    = "Invalid project name"
	msgInvalidProjectEnv = "Invalid project or environment name"
	msgNotFound          = "Environment not found"
	msgVariablesRequired = "Variables object is required"
	msgInternal          = "Internal Server Error"
)

// EnvService defines the env store operations required by the handlers.
type EnvService interface {
	ListProjects(ctx context.Context) ([]string, error)
	ListEnvironments(ctx context.Context, project string) ([]string, error)
	GetEnv(ctx context.Context, project, env string) (*models.EnvData, error)
	Status(ctx context.Context, project, env string) (*models.EnvStatus, error)
	SaveEnv(ctx context.Context, project, env string, vars map[string]string) (*models.EnvData, error)
	DeleteProject(ctx context.Context, project string) error
}

// EnvHandler serves the project and environment endpoints.
type EnvHandler struct {
	Envs    EnvService
	Logger  *zap.Logger
	Metrics *middleware.Metrics
}

// SaveRequest is the JSON payload for saving an environment.
type SaveRequest struct {
	Variables json.RawMessage `json:"variables"`
}

// Health reports that the API is running. It needs no authentication.
func (h *EnvHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Env Manager API is running",
		"version": APIVersion,
		"status":  "ok",
	})
}

// ListProjects returns all project names as a JSON array.
func (h *EnvHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Envs.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, err, msgInvalidProject)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// ListEnvironments returns the environment names of {project}.
func (h *EnvHandler) ListEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := h.Envs.ListEnvironments(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.fail(w, r, err, msgInvalidProject)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

// GetEnv returns the full record of {project}/{env}.
func (h *EnvHandler) GetEnv(w http.ResponseWriter, r *http.Request) {
	data, err := h.Envs.GetEnv(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "env"))
	if err != nil {
		h.fail(w, r, err, msgInvalidProjectEnv)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Status returns only {"lastModified"} of {project}/{env}.
func (h *EnvHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Envs.Status(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "env"))
	if err != nil {
		h.fail(w, r, err, msgInvalidProjectEnv)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SaveEnv replaces the variable set of {project}/{env} and returns the stored record.
// The body must carry a "variables" object whose values are strings.
func (h *EnvHandler) SaveEnv(w http.ResponseWriter, r *http.Request) {
	project, env := chi.URLParam(r, "project"), chi.URLParam(r, "env")
	if !models.ValidName(project) || !models.ValidName(env) {
		writeError(w, http.StatusBadRequest, msgInvalidProjectEnv)
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgVariablesRequired)
		return
	}
	raw := bytes.TrimSpace(req.Variables)
	if len(raw) == 0 || raw[0] != '{' {
		writeError(w, http.StatusBadRequest, msgVariablesRequired)
		return
	}
	var vars map[string]string
	if err := json.Unmarshal(raw, &vars); err != nil {
		writeError(w, http.StatusBadRequest, "Variable values must be strings")
		return
	}

	data, err := h.Envs.SaveEnv(r.Context(), project, env, vars)
	if err != nil {
		h.fail(w, r, err, msgInvalidProjectEnv)
		return
	}
	h.Metrics.EnvSaved()
	h.Logger.Info("environment saved",
		zap.String("project", project),
		zap.String("env", env),
		zap.Int("variables", len(vars)),
		zap.String("auth", middleware.AuthSourceFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, data)
}

// DeleteProject removes {project} and all of its environments.
func (h *EnvHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if err := h.Envs.DeleteProject(r.Context(), project); err != nil {
		h.fail(w, r, err, msgInvalidProject)
		return
	}
	h.Logger.Info("project deleted", zap.String("project", project))
	writeJSON(w, http.StatusOK, successBody)
}

// fail maps service errors to responses. invalidMsg is the message used for
// name validation failures on this route.
func (h *EnvHandler) fail(w http.ResponseWriter, r *http.Request, err error, invalidMsg string) {
	switch {
	case errors.Is(err, service.ErrInvalidName):
		writeError(w, http.StatusBadRequest, invalidMsg)
	case errors.Is(err, service.ErrVariablesRequired):
		writeError(w, http.StatusBadRequest, msgVariablesRequired)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
