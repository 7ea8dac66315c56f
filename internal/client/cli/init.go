package cli

import (
	"fmt"

	"github.com/atinyakov/envmanager/internal/models"
	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var project, env string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize local project configuration",
		Long: `Bind the current directory to a project environment on the server.
Without flags the project and environment are chosen from the server's lists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInit(cmd, project, env)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name")
	cmd.Flags().StringVarP(&env, "env", "e", "", "environment name")
	return cmd
}

func (a *App) runInit(cmd *cobra.Command, project, env string) error {
	if project != "" && !models.ValidName(project) {
		return userErrorf(nil, "Invalid project name: %q", project)
	}
	if env != "" && !models.ValidName(env) {
		return userErrorf(nil, "Invalid environment name: %q", env)
	}

	store, err := a.store()
	if err != nil {
		return err
	}
	global, err := store.LoadGlobal()
	if err != nil {
		return err
	}
	cfg := store.Remote(global)
	if cfg.ServerURL == "" || cfg.SecretKey == "" {
		return userErrorf(nil, msgNoGlobalConfig)
	}

	if project == "" || env == "" {
		c, err := a.client(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if project == "" {
			projects, err := c.ListProjects(ctx)
			if err != nil {
				return explain(fmt.Errorf("fetch projects: %w", err), cfg.ServerURL, "")
			}
			if len(projects) == 0 {
				a.warnf("No projects found on the server. Please create one via the dashboard first.\n")
				return nil
			}
			if project, err = a.Prompt.Select("Select a project:", projects); err != nil {
				return err
			}
		}

		envs, err := c.ListEnvironments(ctx, project)
		if err != nil {
			return explain(fmt.Errorf("fetch environments: %w", err), cfg.ServerURL,
				fmt.Sprintf("Project '%s' not found on server.", project))
		}
		if len(envs) == 0 {
			a.warnf("No environments found for project '%s'. Please create one via the dashboard first.\n", project)
			return nil
		}
		if env == "" {
			if env, err = a.Prompt.Select("Select an environment:", envs); err != nil {
				return err
			}
		}
	}

	local, _, err := store.LoadLocal()
	if err != nil {
		return err
	}
	local.Project = project
	local.Environment = env
	local.LastSynced = nil
	if err := store.SaveLocal(local); err != nil {
		return err
	}
	a.printf("Project '%s' initialized locally. Run 'envmanager pull' to fetch variables.\n", project)
	return nil
}
