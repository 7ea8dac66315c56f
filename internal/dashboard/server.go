// Package dashboard serves the server-rendered web UI for managing projects
// and editing environment variables.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/atinyakov/envmanager/internal/middleware"
	"github.com/atinyakov/envmanager/internal/models"
	"github.com/atinyakov/envmanager/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultEnvironments are offered as tabs on every project even before they exist.
var DefaultEnvironments = []string{"local", "alpha", "prod"}

// blankRows is the number of empty rows rendered for adding variables.
const blankRows = 3

// EnvService defines the env store operations used by the dashboard.
type EnvService interface {
	ListProjects(ctx context.Context) ([]string, error)
	ListEnvironments(ctx context.Context, project string) ([]string, error)
	GetEnv(ctx context.Context, project, env string) (*models.EnvData, error)
	SaveEnv(ctx context.Context, project, env string, vars map[string]string) (*models.EnvData, error)
	DeleteProject(ctx context.Context, project string) error
}

// KeyChecker validates the admin secret.
type KeyChecker interface {
	Check(key string) bool
}

// Config wires the dashboard to the rest of the server.
type Config struct {
	Envs   EnvService
	Auth   KeyChecker
	Logger *zap.Logger
	// SetCookie and ClearCookie manage the session cookie so the dashboard and
	// the API issue identical cookies.
	SetCookie   func(w http.ResponseWriter, key string)
	ClearCookie func(w http.ResponseWriter)
	// LoginLimit wraps the form login. Pass the same middleware that guards
	// the API login so both share one attempt budget; nil disables it.
	LoginLimit func(http.Handler) http.Handler
}

// Server hosts the dashboard.
type Server struct {
	cfg       Config
	templates *template.Template
	router    chi.Router
}

// New parses the embedded templates and registers the routes.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LoginLimit == nil {
		cfg.LoginLimit = func(next http.Handler) http.Handler { return next }
	}
	tmplFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	templates, err := template.New("base").ParseFS(tmplFS, "*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, templates: templates, router: chi.NewRouter()}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP conforms to http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Get("/login", s.handleLoginForm)
	r.With(s.cfg.LoginLimit).Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleHome)
		r.Post("/projects", s.handleProjectCreate)
		r.Get("/projects/{project}", s.handleProject)
		r.Get("/projects/{project}/delete", s.handleProjectDeleteConfirm)
		r.Post("/projects/{project}/delete", s.handleProjectDelete)
		r.Post("/projects/{project}/envs", s.handleEnvCreate)
		r.Get("/projects/{project}/envs/{env}", s.handleEditor)
		r.Post("/projects/{project}/envs/{env}", s.handleEditorSubmit)
	})
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(middleware.AuthCookie)
	return err == nil && s.cfg.Auth.Check(c.Value)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.authenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login", map[string]any{
		"Title": "Sign in",
		"Flash": flashFromRequest(r),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	key := r.PostFormValue("apiKey")
	if !s.cfg.Auth.Check(key) {
		s.cfg.Logger.Warn("dashboard login failed", zap.String("remote", r.RemoteAddr))
		s.render(w, http.StatusUnauthorized, "login", map[string]any{
			"Title": "Sign in",
			"Flash": "Invalid API Key",
		})
		return
	}
	s.cfg.SetCookie(w, key)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.cfg.ClearCookie(w)
	redirectWithFlash(w, r, "/login", "Signed out")
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	projects, err := s.cfg.Envs.ListProjects(r.Context())
	if err != nil {
		s.fail(w, err, "failed to load projects")
		return
	}
	s.render(w, http.StatusOK, "projects", map[string]any{
		"Title":    "Projects",
		"Flash":    flashFromRequest(r),
		"Projects": projects,
	})
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	if !models.ValidName(name) {
		redirectWithFlash(w, r, "/", "Invalid project name")
		return
	}
	// a project becomes real once its first environment is saved
	http.Redirect(w, r, "/projects/"+url.PathEscape(name)+"/envs/"+DefaultEnvironments[0], http.StatusSeeOther)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if !models.ValidName(project) {
		s.renderError(w, http.StatusBadRequest, "Invalid project name")
		return
	}
	stored, err := s.cfg.Envs.ListEnvironments(r.Context(), project)
	if err != nil {
		s.fail(w, err, "failed to load environments")
		return
	}
	s.render(w, http.StatusOK, "project", map[string]any{
		"Title":        project,
		"Flash":        flashFromRequest(r),
		"Project":      project,
		"Environments": tabs(stored),
		"Stored":       stored,
	})
}

// tabs merges the stored environments with the defaults. Defaults come
// first in their fixed order, then the remaining stored names sorted.
func tabs(stored []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(stored)+len(DefaultEnvironments))
	for _, d := range DefaultEnvironments {
		seen[d] = true
		out = append(out, d)
	}
	extra := []string{}
	for _, e := range stored {
		if !seen[e] {
			seen[e] = true
			extra = append(extra, e)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (s *Server) handleProjectDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if !models.ValidName(project) {
		s.renderError(w, http.StatusBadRequest, "Invalid project name")
		return
	}
	s.render(w, http.StatusOK, "confirm", map[string]any{
		"Title":   "Delete " + project,
		"Project": project,
	})
}

func (s *Server) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if !models.ValidName(project) {
		s.renderError(w, http.StatusBadRequest, "Invalid project name")
		return
	}
	if err := s.cfg.Envs.DeleteProject(r.Context(), project); err != nil {
		s.fail(w, err, "failed to delete project")
		return
	}
	s.cfg.Logger.Info("project deleted from dashboard", zap.String("project", project))
	redirectWithFlash(w, r, "/", "Project "+project+" deleted")
}

func (s *Server) handleEnvCreate(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	env := strings.TrimSpace(r.PostFormValue("name"))
	if !models.ValidName(project) || !models.ValidName(env) {
		redirectWithFlash(w, r, "/projects/"+url.PathEscape(project), "Invalid project or environment name")
		return
	}
	http.Redirect(w, r, editorPath(project, env), http.StatusSeeOther)
}

func editorPath(project, env string) string {
	return "/projects/" + url.PathEscape(project) + "/envs/" + url.PathEscape(env)
}

// loadStored returns the stored variables of an environment. A missing
// environment is an empty set, so the editor doubles as the create form.
func (s *Server) loadStored(ctx context.Context, project, env string) (*models.EnvData, error) {
	data, err := s.cfg.Envs.GetEnv(ctx, project, env)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.EnvData{Variables: map[string]string{}}, nil
	}
	return data, err
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	project, env := chi.URLParam(r, "project"), chi.URLParam(r, "env")
	if !models.ValidName(project) || !models.ValidName(env) {
		s.renderError(w, http.StatusBadRequest, "Invalid project or environment name")
		return
	}
	stored, err := s.loadStored(r.Context(), project, env)
	if err != nil {
		s.fail(w, err, "failed to load environment")
		return
	}
	s.renderEditor(w, r, http.StatusOK, project, env, stored, NewEditor(stored.Variables), flashFromRequest(r), false)
}

// handleEditorSubmit handles both the import and the save buttons. Import
// merges the pasted content and re-renders without saving; save writes the
// whole set unless it equals what is stored.
func (s *Server) handleEditorSubmit(w http.ResponseWriter, r *http.Request) {
	project, env := chi.URLParam(r, "project"), chi.URLParam(r, "env")
	if !models.ValidName(project) || !models.ValidName(env) {
		s.renderError(w, http.StatusBadRequest, "Invalid project or environment name")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	stored, err := s.loadStored(r.Context(), project, env)
	if err != nil {
		s.fail(w, err, "failed to load environment")
		return
	}

	ed := NewEditor(stored.Variables)
	ed.SetRows(rowsFromForm(r.PostForm))

	if r.PostFormValue("action") == "import" {
		n := ed.Import(r.PostFormValue("import"))
		flash := strconv.Itoa(n) + " variables imported. Review and save."
		if n == 0 {
			flash = "Nothing to import"
		}
		s.renderEditor(w, r, http.StatusOK, project, env, stored, ed, flash, ed.Dirty())
		return
	}

	if err := ed.Validate(); err != nil {
		s.renderEditor(w, r, http.StatusBadRequest, project, env, stored, ed, err.Error(), true)
		return
	}
	if !ed.Dirty() {
		s.renderEditor(w, r, http.StatusOK, project, env, stored, ed, "No changes to save", false)
		return
	}

	saved, err := s.cfg.Envs.SaveEnv(r.Context(), project, env, ed.Variables())
	if err != nil {
		s.fail(w, err, "failed to save environment")
		return
	}
	s.cfg.Logger.Info("environment saved from dashboard",
		zap.String("project", project),
		zap.String("env", env),
		zap.Int("variables", len(saved.Variables)),
	)
	redirectWithFlash(w, r, editorPath(project, env), "Saved")
}

// rowsFromForm reads the parallel key/value fields. Rows whose index is
// listed in "remove" are dropped.
func rowsFromForm(form url.Values) []Row {
	keys, values := form["key"], form["value"]
	removed := map[string]bool{}
	for _, idx := range form["remove"] {
		removed[idx] = true
	}
	rows := make([]Row, 0, len(keys))
	for i, k := range keys {
		if removed[strconv.Itoa(i)] {
			continue
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		rows = append(rows, Row{Key: k, Value: v})
	}
	return rows
}

type editorRow struct {
	Index int
	Key   string
	Value string
}

func (s *Server) renderEditor(w http.ResponseWriter, r *http.Request, status int, project, env string, stored *models.EnvData, ed *Editor, flash string, dirty bool) {
	rows := ed.Rows()
	view := make([]editorRow, 0, len(rows)+blankRows)
	for i, row := range rows {
		view = append(view, editorRow{Index: i, Key: row.Key, Value: row.Value})
	}
	for i := 0; i < blankRows; i++ {
		view = append(view, editorRow{Index: len(rows) + i})
	}
	envs, err := s.cfg.Envs.ListEnvironments(r.Context(), project)
	if err != nil {
		s.cfg.Logger.Warn("failed to list environments", zap.String("project", project), zap.Error(err))
	}
	s.render(w, status, "editor", map[string]any{
		"Title":        project + " / " + env,
		"Flash":        flash,
		"Project":      project,
		"Env":          env,
		"Environments": tabs(envs),
		"Rows":         view,
		"LastModified": stored.LastModified,
		"Dirty":        dirty,
	})
}

func (s *Server) render(w http.ResponseWriter, status int, tpl string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, tpl, data); err != nil {
		s.cfg.Logger.Error("template render failed", zap.String("template", tpl), zap.Error(err))
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.cfg.Logger.Warn("dashboard error", zap.Int("status", status), zap.String("message", message))
	http.Error(w, message, status)
}

func (s *Server) fail(w http.ResponseWriter, err error, message string) {
	s.cfg.Logger.Error(message, zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func flashFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("flash"))
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	q := u.Query()
	q.Set("flash", message)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
