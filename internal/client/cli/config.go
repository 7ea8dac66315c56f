package cli

import (
	"errors"

	"github.com/atinyakov/envmanager/internal/client/api"
	"github.com/atinyakov/envmanager/internal/client/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// DefaultServerURL is offered when no server URL is configured yet.
const DefaultServerURL = "http://localhost:3000"

func newConfigCmd(app *App) *cobra.Command {
	var serverURL, secretKey, caFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Set global configuration (Server URL, Secret Key)",
		Long: `Store the server URL and secret key in the per-user configuration file.
Missing values are asked for interactively. The connection is tested before
saving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runConfig(cmd, serverURL, secretKey, caFile)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server-url", "", "Env Manager server URL")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "admin secret key")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "CA certificate for servers with a self-signed certificate")
	return cmd
}

func (a *App) runConfig(cmd *cobra.Command, serverURL, secretKey, caFile string) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	current, err := store.LoadGlobal()
	if err != nil {
		return err
	}

	if serverURL == "" {
		def := current.ServerURL
		if def == "" {
			def = DefaultServerURL
		}
		if serverURL, err = a.Prompt.Input("Enter the Env Manager Server URL:", def, false); err != nil {
			return err
		}
	}
	if secretKey == "" {
		if secretKey, err = a.Prompt.Input("Enter your Admin Secret Key:", "", true); err != nil {
			return err
		}
	}
	if caFile == "" {
		caFile = current.CAFile
	}

	g := storage.Global{ServerURL: storage.NormalizeURL(serverURL), SecretKey: secretKey, CAFile: caFile}
	cfg := &storage.Config{ServerURL: g.ServerURL, SecretKey: g.SecretKey, CAFile: g.CAFile}

	a.printf("Testing connection...\n")
	if err := a.testConnection(cmd, cfg); err != nil {
		a.Logger.Debug("connection test failed", zap.Error(err))
		if errors.Is(err, api.ErrUnauthorized) {
			a.warnf("%s\n", msgAuthFailed)
		} else {
			a.warnf("Failed to connect to server. Please check the URL.\n")
		}
		save, err := a.Prompt.Confirm("Do you want to save this configuration anyway?", false)
		if err != nil {
			return err
		}
		if !save {
			a.printf("Configuration not saved.\n")
			return nil
		}
	} else {
		a.printf("Connection successful!\n")
	}

	if err := store.SaveGlobal(g); err != nil {
		return err
	}
	a.printf("Configuration saved globally.\n")
	return nil
}

func (a *App) testConnection(cmd *cobra.Command, cfg *storage.Config) error {
	c, err := a.client(cfg)
	if err != nil {
		return err
	}
	_, err = c.ListProjects(cmd.Context())
	return err
}
