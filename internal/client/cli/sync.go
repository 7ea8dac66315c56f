package cli

import (
	"github.com/atinyakov/envmanager/internal/client/reconcile"
	"github.com/atinyakov/envmanager/internal/envfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull environment variables if the server has changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loadSession()
			if err != nil {
				return err
			}
			return app.sync(cmd, s)
		},
	}
}

func (a *App) sync(cmd *cobra.Command, s *session) error {
	ctx := cmd.Context()
	a.printf("Checking for updates on %s...\n", s.cfg.ServerURL)

	local, err := envfile.Read(a.Fs, s.store.EnvPath())
	if err != nil {
		return err
	}

	st, err := s.remote.Status(ctx, s.cfg.Project, s.cfg.Environment)
	switch {
	case err != nil:
		a.Logger.Debug("status probe failed", zap.Error(err))
	case local.Exists && reconcile.UpToDate(reconcile.Reference(local, s.cfg.LastSynced), st.LastModified):
		a.printf("Environment variables are up to date.\n")
		return nil
	default:
		a.printf("Environment variables have changed. Pulling updates...\n")
	}
	return a.pull(ctx, s, pullOptions{Probed: true})
}
