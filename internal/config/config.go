// Package config provides functionality for managing configuration options
// for the server using command-line flags, environment variables and an
// optional JSON config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// DefaultAdminSecret is used when no secret is configured. The server warns
// at startup when it is still in effect.
const DefaultAdminSecret = "changeme"

// Options holds the configuration values for the server.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"address"`

	// AdminSecret is the single shared key for the API and the dashboard.
	AdminSecret string `json:"admin_secret"`

	// DataDir is the root of the file store.
	DataDir string `json:"data_dir"`

	// DatabaseDSN selects the PostgreSQL store when non-empty.
	DatabaseDSN string `json:"database_dsn"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// CookieSecure marks the auth cookie Secure.
	CookieSecure bool `json:"cookie_secure"`

	// RedisAddr enables the shared Redis login limiter.
	RedisAddr string `json:"redis_addr"`

	// LoginRateLimit is the number of login attempts per client IP per minute. 0 disables limiting.
	LoginRateLimit int `json:"login_rate_limit"`

	// LogLevel is passed to logger.Init.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// LoginWindow is the fixed window LoginRateLimit applies to.
const LoginWindow = time.Minute

// TLSEnabled reports whether both a certificate and a key are configured.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

func defaults() Options {
	return Options{
		Address:        ":3000",
		AdminSecret:    DefaultAdminSecret,
		DataDir:        "data",
		LoginRateLimit: 10,
		LogLevel:       "info",
		Config:         "config.json",
	}
}

// Parse reads the process arguments and environment.
func Parse() (*Options, error) {
	return ParseArgs(os.Args[1:], os.Getenv)
}

// ParseArgs builds Options from args and getenv.
// Precedence, lowest first: defaults, JSON config file, explicit flags,
// environment variables. The default config file is optional; a config file
// named explicitly must exist.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	flagged := defaults()
	fs.StringVar(&flagged.Address, "a", flagged.Address, "run on ip:port server")
	fs.StringVar(&flagged.AdminSecret, "s", flagged.AdminSecret, "admin secret for the API and dashboard")
	fs.StringVar(&flagged.DataDir, "data", flagged.DataDir, "data directory of the file store")
	fs.StringVar(&flagged.DatabaseDSN, "d", flagged.DatabaseDSN, "db address; enables the postgres store")
	fs.StringVar(&flagged.TLSCert, "tls-cert", flagged.TLSCert, "path to the TLS certificate")
	fs.StringVar(&flagged.TLSKey, "tls-key", flagged.TLSKey, "path to the TLS private key")
	fs.BoolVar(&flagged.CookieSecure, "cookie-secure", flagged.CookieSecure, "mark the auth cookie Secure")
	fs.StringVar(&flagged.RedisAddr, "redis", flagged.RedisAddr, "redis address for the login rate limiter")
	fs.IntVar(&flagged.LoginRateLimit, "login-limit", flagged.LoginRateLimit, "login attempts per IP per minute (0 disables)")
	fs.StringVar(&flagged.LogLevel, "log-level", flagged.LogLevel, "log level")
	fs.StringVar(&flagged.Config, "config", flagged.Config, "path to config file")
	fs.StringVar(&flagged.Config, "c", flagged.Config, "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := defaults()

	configPath, explicit := flagged.Config, set["c"] || set["config"]
	if v := getenv("CONFIG"); v != "" {
		configPath, explicit = v, true
	}
	opts.Config = configPath
	if err := loadFile(&opts, configPath, explicit); err != nil {
		return nil, err
	}

	overlay := map[string]func(){
		"a":             func() { opts.Address = flagged.Address },
		"s":             func() { opts.AdminSecret = flagged.AdminSecret },
		"data":          func() { opts.DataDir = flagged.DataDir },
		"d":             func() { opts.DatabaseDSN = flagged.DatabaseDSN },
		"tls-cert":      func() { opts.TLSCert = flagged.TLSCert },
		"tls-key":       func() { opts.TLSKey = flagged.TLSKey },
		"cookie-secure": func() { opts.CookieSecure = flagged.CookieSecure },
		"redis":         func() { opts.RedisAddr = flagged.RedisAddr },
		"login-limit":   func() { opts.LoginRateLimit = flagged.LoginRateLimit },
		"log-level":     func() { opts.LogLevel = flagged.LogLevel },
	}
	for name := range set {
		if apply, ok := overlay[name]; ok {
			apply()
		}
	}

	if err := applyEnv(&opts, getenv); err != nil {
		return nil, err
	}
	return &opts, nil
}

func loadFile(opts *Options, path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func applyEnv(opts *Options, getenv func(string) string) error {
	strs := map[string]*string{
		"SERVER_ADDRESS": &opts.Address,
		"ADMIN_SECRET":   &opts.AdminSecret,
		"DATA_DIR":       &opts.DataDir,
		"DATABASE_DSN":   &opts.DatabaseDSN,
		"TLS_CERT":       &opts.TLSCert,
		"TLS_KEY":        &opts.TLSKey,
		"REDIS_ADDR":     &opts.RedisAddr,
		"LOG_LEVEL":      &opts.LogLevel,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		opts.CookieSecure = b
	}
	if v := getenv("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGIN_RATE_LIMIT: %w", err)
		}
		opts.LoginRateLimit = n
	}
	return nil
}
