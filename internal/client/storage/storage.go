// Package storage persists the CLI configuration.
//
// Two JSON files are involved. The global file holds the server URL and the
// secret key shared by every project on the machine. The local file lives in
// the project directory and binds it to one project environment; it may also
// carry a server URL or secret key, which then take precedence.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/envmanager/internal/envfile"
	"github.com/spf13/afero"
)

const (
	// LocalFile is the per-project configuration file name.
	LocalFile = ".envmanager.json"
	// EnvFile is the dotenv file the CLI manages.
	EnvFile = ".env"

	// Environment variables consulted by the store.
	EnvConfigPath = "ENVMANAGER_CONFIG"
	EnvServerURL  = "ENVMANAGER_SERVER_URL"
	EnvSecretKey  = "ENVMANAGER_SECRET_KEY"
)

// ErrNotInitialized is returned by Load when the working directory has no
// local configuration.
var ErrNotInitialized = errors.New("project is not initialized")

// Global is the per-user configuration.
type Global struct {
	ServerURL string `json:"serverUrl"`
	SecretKey string `json:"secretKey"`
	CAFile    string `json:"caFile,omitempty"`
}

// Local is the per-project configuration.
type Local struct {
	ServerURL   string     `json:"serverUrl,omitempty"`
	SecretKey   string     `json:"secretKey,omitempty"`
	Project     string     `json:"project"`
	Environment string     `json:"environment"`
	LastSynced  *time.Time `json:"lastSynced,omitempty"`
}

// Config is the effective configuration of one CLI invocation.
type Config struct {
	ServerURL   string
	SecretKey   string
	CAFile      string
	Project     string
	Environment string
	LastSynced  *time.Time
}

// Store reads and writes the configuration files.
type Store struct {
	Fs         afero.Fs
	WorkDir    string
	GlobalPath string
	Getenv     func(string) string
}

// NewStore returns a store rooted at workDir. The global file is taken from
// ENVMANAGER_CONFIG, falling back to the user configuration directory.
func NewStore(fs afero.Fs, workDir string, getenv func(string) string) (*Store, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	path := getenv(EnvConfigPath)
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate user config dir: %w", err)
		}
		path = filepath.Join(dir, "envmanager", "config.json")
	}
	return &Store{Fs: fs, WorkDir: workDir, GlobalPath: path, Getenv: getenv}, nil
}

// LocalPath is the location of the local configuration file.
func (s *Store) LocalPath() string {
	return filepath.Join(s.WorkDir, LocalFile)
}

// EnvPath is the location of the managed .env file.
func (s *Store) EnvPath() string {
	return filepath.Join(s.WorkDir, EnvFile)
}

// LoadGlobal reads the global file. A missing file yields a zero Global.
func (s *Store) LoadGlobal() (Global, error) {
	var g Global
	_, err := s.readJSON(s.GlobalPath, &g)
	return g, err
}

// SaveGlobal writes the global file, creating its directory when needed.
func (s *Store) SaveGlobal(g Global) error {
	g.ServerURL = NormalizeURL(g.ServerURL)
	if err := s.Fs.MkdirAll(filepath.Dir(s.GlobalPath), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return s.writeJSON(s.GlobalPath, g)
}

// LoadLocal reads the local file. ok is false when the file does not exist.
func (s *Store) LoadLocal() (l Local, ok bool, err error) {
	ok, err = s.readJSON(s.LocalPath(), &l)
	return l, ok, err
}

// SaveLocal writes the local file.
func (s *Store) SaveLocal(l Local) error {
	return s.writeJSON(s.LocalPath(), l)
}

// SetLastSynced records t as the last successful pull, keeping the other
// local settings.
func (s *Store) SetLastSynced(t time.Time) error {
	l, ok, err := s.LoadLocal()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	t = t.UTC()
	l.LastSynced = &t
	return s.SaveLocal(l)
}

// Load merges the global file, the local file and the environment. It
// returns ErrNotInitialized when no local file exists.
func (s *Store) Load() (*Config, error) {
	g, err := s.LoadGlobal()
	if err != nil {
		return nil, err
	}
	l, ok, err := s.LoadLocal()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}

	cfg := s.Remote(g)
	cfg.Project = l.Project
	cfg.Environment = l.Environment
	cfg.LastSynced = l.LastSynced
	if l.ServerURL != "" && s.Getenv(EnvServerURL) == "" {
		cfg.ServerURL = NormalizeURL(l.ServerURL)
	}
	if l.SecretKey != "" && s.Getenv(EnvSecretKey) == "" {
		cfg.SecretKey = l.SecretKey
	}
	return cfg, nil
}

// Remote returns the connection settings of g with environment overrides
// applied. It is used by commands that run before a project is initialized.
func (s *Store) Remote(g Global) *Config {
	cfg := &Config{
		ServerURL: NormalizeURL(g.ServerURL),
		SecretKey: g.SecretKey,
		CAFile:    g.CAFile,
	}
	if v := s.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = NormalizeURL(v)
	}
	if v := s.Getenv(EnvSecretKey); v != "" {
		cfg.SecretKey = v
	}
	return cfg
}

func (s *Store) readJSON(path string, v any) (bool, error) {
	data, err := afero.ReadFile(s.Fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return envfile.WriteAtomic(s.Fs, path, append(data, '\n'))
}

// NormalizeURL turns user input into a server base URL: a missing scheme
// becomes http, trailing slashes and a trailing /api are removed.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}
