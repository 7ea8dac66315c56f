// Package cli implements the envmanager command-line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atinyakov/envmanager/internal/client/api"
	"github.com/atinyakov/envmanager/internal/client/storage"
	"github.com/atinyakov/envmanager/internal/logger"
	"github.com/atinyakov/envmanager/internal/models"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version, Commit and Date are set at build time via ldflags.
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Remote is the part of the server API the commands use.
type Remote interface {
	ListProjects(ctx context.Context) ([]string, error)
	ListEnvironments(ctx context.Context, project string) ([]string, error)
	GetEnv(ctx context.Context, project, env string) (*models.EnvData, error)
	Status(ctx context.Context, project, env string) (*models.EnvStatus, error)
}

// App carries the process dependencies of one CLI run.
type App struct {
	Fs      afero.Fs
	WorkDir string
	Getenv  func(string) string
	Out     io.Writer
	Err     io.Writer
	Prompt  Prompter
	// Connect builds the API client for a configuration.
	Connect func(cfg *storage.Config) (Remote, error)
	Logger  *zap.Logger
}

// DefaultApp wires the real filesystem, terminal and network.
func DefaultApp() (*App, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return &App{
		Fs:      afero.NewOsFs(),
		WorkDir: wd,
		Getenv:  os.Getenv,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Prompt:  NewTerminalPrompter(os.Stdin),
		Logger:  zap.NewNop(),
	}, nil
}

func connect(cfg *storage.Config) (Remote, error) {
	return api.New(cfg.ServerURL, cfg.SecretKey, cfg.CAFile)
}

func (a *App) store() (*storage.Store, error) {
	return storage.NewStore(a.Fs, a.WorkDir, a.Getenv)
}

func (a *App) client(cfg *storage.Config) (Remote, error) {
	if a.Connect != nil {
		return a.Connect(cfg)
	}
	return connect(cfg)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) warnf(format string, args ...any) {
	fmt.Fprintf(a.Err, format, args...)
}

// NewRootCmd builds the command tree bound to app.
func NewRootCmd(app *App) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "envmanager",
		Short: "CLI for Env Manager",
		Long: `envmanager keeps a local .env file in step with a project environment
stored on an Env Manager server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.Logger = logger.NewConsole(app.Err, verbose)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("envmanager version %s\ncommit: %s\ndate: %s\n", Version, Commit, Date))
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print diagnostic output")

	root.AddCommand(newConfigCmd(app))
	root.AddCommand(newInitCmd(app))
	root.AddCommand(newPullCmd(app))
	root.AddCommand(newStatusCmd(app))
	root.AddCommand(newSyncCmd(app))
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	app, err := DefaultApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
