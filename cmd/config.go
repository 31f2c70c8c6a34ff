package cmd

import (
	"fmt"

	"github.com/grovetools/packreload/cli"
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configView is what the config command prints.
type configView struct {
	Paths     map[string]string `yaml:"paths" json:"paths"`
	Settings  *config.Settings  `yaml:"settings" json:"settings"`
	Toolchain *config.Toolchain `yaml:"toolchain" json:"toolchain"`
}

// NewConfigCmd returns the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the resolved settings and toolchain config",
		Long: `Shows the host settings after defaults, the toolchain config read from
the config folder (creating it with defaults when absent) and the paths
the reloader uses. This is useful for debugging configuration issues.
With --schema it prints the JSON Schema of the settings file instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema, _ := cmd.Flags().GetBool("schema"); printSchema {
				raw, err := config.GenerateSettingsSchema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			}

			settings, err := cli.LoadSettings(cmd)
			if err != nil {
				return err
			}
			toolchain, err := config.LoadToolchain(settings.ConfigDir)
			if err != nil {
				return err
			}

			redacted := *settings
			if redacted.OperatorToken != "" {
				redacted.OperatorToken = "********"
			}

			view := configView{
				Paths: map[string]string{
					"settings":  settingsPath(cmd),
					"toolchain": config.ToolchainPath(settings.ConfigDir),
					"dev":       devDir(settings),
					"pid_file":  paths.PidFilePath(),
					"socket":    paths.SocketPath(),
					"log_file":  logging.LogFilePath(settings.Logging),
				},
				Settings:  &redacted,
				Toolchain: toolchain,
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			data, err := yaml.Marshal(view)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().Bool("schema", false, "Print the settings file JSON Schema")
	return cmd
}

func settingsPath(cmd *cobra.Command) string {
	if p := cli.GetOptions(cmd).SettingsFile; p != "" {
		return p
	}
	return paths.SettingsPath()
}
