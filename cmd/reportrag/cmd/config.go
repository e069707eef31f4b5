package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/reportrag/configs"
	"github.com/Aman-CERP/reportrag/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect and create configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/reportrag/config.yaml)
  3. Project config (.reportrag.yaml)
  4. .env in the project directory
  5. Environment variables (REPORTRAG_*, SILICONFLOW_API_KEY)

API keys are best kept in the user config or the environment rather than
in a project config that may be committed.`,
		Example: `  # Create .reportrag.yaml in the current project
  reportrag config init

  # Create the user config for API endpoints and models
  reportrag config init --user

  # Show the effective configuration
  reportrag config show`,
	}

	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd(opts))

	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create .reportrag.yaml in the project directory, or the user config with
--user. An existing file is left alone unless --force is given, in which case
it is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, opts, force, user)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of the project config")

	return cmd
}

func runConfigInit(cmd *cobra.Command, opts *rootOptions, force, user bool) error {
	out := newWriter(cmd, opts)

	path, template := config.ProjectConfigPath(opts.dir), configs.ProjectConfigTemplate
	if user {
		path, template = config.GetUserConfigPath(), configs.UserConfigTemplate
	}

	if fileExists(path) {
		if !force {
			out.Warningf("Configuration already exists: %s", path)
			out.Status("💡", "Use --force to overwrite (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.Statusf("📦", "Backed up to %s", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out.Successf("Created %s", path)
	return nil
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after merging all sources. API keys are masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.dir)
			if err != nil {
				return err
			}
			shown := cfg.Redacted()

			if jsonOutput {
				return writeJSON(cmd, shown)
			}
			data, err := yaml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// configPaths lists the files Load reads.
type configPaths struct {
	User    string `json:"user"`
	Project string `json:"project"`
	Env     string `json:"env"`
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := configPaths{
				User:    config.GetUserConfigPath(),
				Project: config.ProjectConfigPath(opts.dir),
				Env:     filepath.Join(opts.dir, ".env"),
			}
			if jsonOutput {
				return writeJSON(cmd, paths)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "user:    %s\n", paths.User)
			fmt.Fprintf(w, "project: %s\n", paths.Project)
			fmt.Fprintf(w, "env:     %s\n", paths.Env)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
