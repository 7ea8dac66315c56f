package cli

import (
	"time"

	"github.com/atinyakov/envmanager/internal/client/reconcile"
	"github.com/atinyakov/envmanager/internal/envfile"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check status of environment variables without pulling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loadSession()
			if err != nil {
				return err
			}
			return app.status(cmd, s)
		},
	}
}

func (a *App) status(cmd *cobra.Command, s *session) error {
	a.printf("Checking status for %s:%s on %s...\n", s.cfg.Project, s.cfg.Environment, s.cfg.ServerURL)

	st, err := s.remote.Status(cmd.Context(), s.cfg.Project, s.cfg.Environment)
	if err != nil {
		return explain(err, s.cfg.ServerURL, s.notFound())
	}
	local, err := envfile.Read(a.Fs, s.store.EnvPath())
	if err != nil {
		return err
	}

	remote := st.LastModified
	switch {
	case remote.IsZero():
		a.printf("Remote environment has no last modified date.\n")
	case !local.Exists:
		a.printf("Local .env file is missing.\n")
		a.printf("   Remote last modified: %s\n", formatTime(remote))
		a.printf("   Run \"envmanager pull\" to fetch variables.\n")
	case reconcile.UpToDate(reconcile.Reference(local, s.cfg.LastSynced), remote):
		a.printf("Up to date.\n")
		a.printf("   Local .env modified: %s\n", formatTime(local.ModTime))
	default:
		a.printf("Out of sync.\n")
		a.printf("   Remote last modified: %s\n", formatTime(remote))
		if s.cfg.LastSynced != nil {
			a.printf("   Last synced:          %s\n", formatTime(*s.cfg.LastSynced))
		}
		a.printf("   Local .env modified:  %s\n", formatTime(local.ModTime))
		a.printf("   Run \"envmanager pull\" to update.\n")
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}
