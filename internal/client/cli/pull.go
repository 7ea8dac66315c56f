package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/atinyakov/envmanager/internal/client/reconcile"
	"github.com/atinyakov/envmanager/internal/client/storage"
	"github.com/atinyakov/envmanager/internal/envfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const msgOverwritePrompt = "Do you want to overwrite your local .env file with the server version?"

func newPullCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull environment variables",
		Long: `Fetch the configured environment from the server and write it to .env.
A local file edited after the server version is only replaced after
confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loadSession()
			if err != nil {
				return err
			}
			return app.pull(cmd.Context(), s, pullOptions{Force: force})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force update regardless of timestamps")
	return cmd
}

// session is the configuration and server connection of one command.
type session struct {
	store  *storage.Store
	cfg    *storage.Config
	remote Remote
}

func (s *session) notFound() string {
	return fmt.Sprintf("Environment '%s' not found on server.", s.cfg.Environment)
}

// loadSession reads the merged configuration and connects to its server.
func (a *App) loadSession() (*session, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, explain(err, "", "")
	}
	if cfg.ServerURL == "" || cfg.SecretKey == "" {
		return nil, userErrorf(nil, msgNoGlobalConfig)
	}
	remote, err := a.client(cfg)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("loaded configuration",
		zap.String("server", cfg.ServerURL),
		zap.String("project", cfg.Project),
		zap.String("environment", cfg.Environment),
	)
	return &session{store: store, cfg: cfg, remote: remote}, nil
}

type pullOptions struct {
	Force bool
	// Probed skips the status probe because the caller already ran one.
	Probed bool
}

func (a *App) pull(ctx context.Context, s *session, opts pullOptions) error {
	envPath := s.store.EnvPath()
	local, err := envfile.Read(a.Fs, envPath)
	if err != nil {
		return err
	}

	if !opts.Force && !opts.Probed && local.Exists {
		if a.probeUpToDate(ctx, s, local) {
			a.printf("Environment variables are already up to date.\n")
			return nil
		}
	}

	a.printf("Fetching environment variables for %s/%s from %s...\n", s.cfg.Project, s.cfg.Environment, s.cfg.ServerURL)
	data, err := s.remote.GetEnv(ctx, s.cfg.Project, s.cfg.Environment)
	if err != nil {
		return explain(err, s.cfg.ServerURL, s.notFound())
	}

	d := reconcile.Decide(reconcile.Input{
		Force:          opts.Force,
		Local:          local,
		LastSynced:     s.cfg.LastSynced,
		RemoteModified: data.LastModified,
		RemoteVars:     data.Variables,
	})
	a.Logger.Debug("reconciled", zap.Stringer("action", d.Action), zap.String("reason", string(d.Reason)))

	switch d.Action {
	case reconcile.Skip:
		if d.Reason == reconcile.ReasonContentMatch {
			a.printf("Environment variables are already up to date (content match).\n")
		} else {
			a.printf("Environment variables are already up to date.\n")
		}
		return a.recordSync(s, data.LastModified)
	case reconcile.AskUser:
		a.warnf("Local .env file is newer than the server version and has different content.\n")
		a.warnf("Your local changes will be lost if you overwrite.\n")
		ok, err := a.Prompt.Confirm(msgOverwritePrompt, false)
		if err != nil {
			return err
		}
		if !ok {
			a.printf("Pull cancelled\n")
			return nil
		}
		a.printf("Overwriting local changes...\n")
	case reconcile.Overwrite:
		switch d.Reason {
		case reconcile.ReasonForced:
			a.printf("Force pull enabled. Overwriting local changes...\n")
		case reconcile.ReasonCreated:
			a.printf("Creating new .env file...\n")
		default:
			a.printf("Updates detected (server version is newer). Pulling changes...\n")
		}
	}

	if err := envfile.WriteAtomic(a.Fs, envPath, []byte(envfile.Render(data.Variables))); err != nil {
		return err
	}
	a.printf(".env file updated successfully.\n")
	return a.recordSync(s, data.LastModified)
}

// probeUpToDate asks the server for the last modification time only. A
// failed probe is reported as not up to date so the caller fetches.
func (a *App) probeUpToDate(ctx context.Context, s *session, local envfile.State) bool {
	st, err := s.remote.Status(ctx, s.cfg.Project, s.cfg.Environment)
	if err != nil {
		a.Logger.Debug("status probe failed", zap.Error(err))
		return false
	}
	return reconcile.UpToDate(reconcile.Reference(local, s.cfg.LastSynced), st.LastModified)
}

// recordSync persists the server time the local file now matches.
func (a *App) recordSync(s *session, modified time.Time) error {
	if modified.IsZero() {
		return nil
	}
	if s.cfg.LastSynced != nil && s.cfg.LastSynced.Equal(modified) {
		return nil
	}
	if err := s.store.SetLastSynced(modified); err != nil {
		return fmt.Errorf("record last sync: %w", err)
	}
	return nil
}
