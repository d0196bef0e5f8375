package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/smarthr/configs"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/store"
)

const redacted = "********"

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
		Long: `Show or create smarthr configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/smarthr/config.yaml)
  3. Project config (.smarthr.yaml)
  4. Environment variables (SMARTHR_*, OPENAI_API_KEY, TOP_K, USE_DENSE, ...)`,
		Example: `  # Show effective configuration
  smarthr config show

  # Create .smarthr.yaml from the template
  smarthr config init

  # Print config file paths
  smarthr config path`,
	}

	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigInitCmd(root))
	cmd.AddCommand(newConfigPathCmd(root))

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, the user and project files,
and environment variables. The API key is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Embeddings.APIKey != "" {
				shown.Embeddings.APIKey = redacted
			}

			if jsonOutput {
				return output.New(cmd.OutOrStdout(), false).JSON(&shown)
			}
			data, err := yaml.Marshal(&shown)
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

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create .smarthr.yaml in the project root from a commented template, or
with --user ~/.config/smarthr/config.yaml.

An existing file is kept unless --force is given. With --force the file is
backed up and upgraded: your values are preserved and options added since
it was written are filled in with their defaults.`,
		Example: `  smarthr config init
  smarthr config init --user
  smarthr config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, template := config.GetUserConfigPath(), configs.UserConfigTemplate
			if !user {
				projectRoot, err := root.projectRoot()
				if err != nil {
					return err
				}
				path, template = filepath.Join(projectRoot, config.ProjectConfigFile), configs.ProjectConfigTemplate
			}
			return runConfigInit(cmd, root, path, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Upgrade an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func runConfigInit(cmd *cobra.Command, root *rootOptions, path, template string, force bool) error {
	out := output.New(cmd.OutOrStdout(), root.color(cmd))

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Field("Location", path)
			out.Status("", "Use --force to upgrade it (a backup is kept)")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	err := store.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, template)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Configuration created")
	out.Field("Location", path)
	out.Newline()
	out.Status("", "Next steps:")
	out.Status("", "  1. Edit the file to customize settings")
	out.Status("", "  2. Run 'smarthr config show' to verify")
	return nil
}

// runConfigUpgrade backs up path, then rewrites it with the defaults merged
// under its existing values.
func runConfigUpgrade(out *output.Writer, path string) error {
	existing, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	backupPath, err := config.BackupFile(path)
	if err != nil {
		return err
	}
	if err := existing.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Configuration upgraded")
	out.Field("Location", path)
	out.Field("Backup", backupPath)
	out.Status("", "Your existing settings have been preserved")
	return nil
}

func newConfigPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectRoot, err := root.projectRoot()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\n", config.GetUserConfigPath())
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", filepath.Join(projectRoot, config.ProjectConfigFile))
			return nil
		},
	}
}
