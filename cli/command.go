package cli

import (
	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the flags shared by every command.
type CommandOptions struct {
	SettingsFile string
	Verbose      bool
	JSONOutput   bool
}

// NewStandardCommand creates a command with the standard persistent flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("settings", "s", "", "Path to the host settings file (.yml or .toml)")

	SetStyledHelp(cmd)
	return cmd
}

// GetOptions extracts the standard flags from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	settingsFile, _ := cmd.Flags().GetString("settings")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		SettingsFile: settingsFile,
		Verbose:      verbose,
		JSONOutput:   jsonOutput,
	}
}

// LoadSettings loads the host settings named by --settings, or the default
// settings file, and installs their logging section.
func LoadSettings(cmd *cobra.Command) (*config.Settings, error) {
	opts := GetOptions(cmd)
	path := opts.SettingsFile
	if path == "" {
		path = paths.SettingsPath()
	}

	s, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if s.ConfigDir == "" {
		s.ConfigDir = paths.ConfigDir()
	}
	if opts.Verbose {
		s.Logging.Level = "debug"
	}
	logging.Configure(s.Logging)
	return s, nil
}

// GetLogger returns the CLI logger, at debug level under --verbose.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("cli")
	if GetOptions(cmd).Verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}
