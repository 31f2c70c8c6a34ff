package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/packreload/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultTickInterval matches a 20 ticks per second game server.
const DefaultTickInterval = 50 * time.Millisecond

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Settings configures the standalone host that embeds the orchestrator.
type Settings struct {
	// Workspace is the workspace root. The dev directory lives under it.
	Workspace string `yaml:"workspace" toml:"workspace" json:"workspace"`
	// ConfigDir holds the toolchain config file and the fallback compiler script.
	ConfigDir string `yaml:"config_dir" toml:"config_dir" json:"config_dir"`
	// DatapacksDir receives compiled output packages.
	DatapacksDir string `yaml:"datapacks_dir" toml:"datapacks_dir" json:"datapacks_dir"`
	// TickInterval is a Go duration string, e.g. "50ms".
	TickInterval string `yaml:"tick_interval" toml:"tick_interval" json:"tick_interval" jsonschema:"description=Tick interval as a Go duration,example=50ms"`
	// ReloadCommand runs after a successful compile. Empty means reload is a no-op.
	ReloadCommand []string `yaml:"reload_command,omitempty" toml:"reload_command,omitempty" json:"reload_command,omitempty" jsonschema:"description=Command and arguments run after each successful compile"`
	// Listen is the websocket listener address, e.g. "127.0.0.1:7878". Empty disables it.
	Listen string `yaml:"listen,omitempty" toml:"listen,omitempty" json:"listen,omitempty" jsonschema:"description=TCP address serving status and websocket listeners"`
	// OperatorToken marks websocket listeners as privileged.
	OperatorToken string `yaml:"operator_token,omitempty" toml:"operator_token,omitempty" json:"operator_token,omitempty"`
	// ConsolePrivileged makes the stdout console a privileged listener (default true).
	ConsolePrivileged *bool `yaml:"console_privileged,omitempty" toml:"console_privileged,omitempty" json:"console_privileged,omitempty"`

	Logging LoggingSettings `yaml:"logging" toml:"logging" json:"logging"`
}

// LoggingSettings is the logging section of the settings file.
type LoggingSettings struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level" toml:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
	// ReportCaller includes file, line and function in log output.
	ReportCaller bool `yaml:"report_caller" toml:"report_caller" json:"report_caller"`
	// File is the log file path. Empty uses the state directory.
	File string `yaml:"file" toml:"file" json:"file"`
	// Preset is "default", "simple" or "json".
	Preset string `yaml:"preset" toml:"preset" json:"preset" jsonschema:"enum=default,enum=simple,enum=json"`
	// StructuredToStderr is "auto" (default), "always" or "never".
	StructuredToStderr string `yaml:"structured_to_stderr" toml:"structured_to_stderr" json:"structured_to_stderr" jsonschema:"enum=auto,enum=always,enum=never"`
}

// LoadSettings reads host settings from path. A missing file yields defaults.
// The format follows the extension: .toml is TOML, anything else is YAML.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read settings file").
			WithDetail("path", path)
	}
	if err == nil {
		data = []byte(expandEnvVars(string(data)))
		if err := validateSettingsDocument(path, data); err != nil {
			return nil, err
		}
		if err := unmarshalSettings(path, data, s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse settings file").
				WithDetail("path", path)
		}
	}

	if err := s.SetDefaults(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalSettings(path string, data []byte, s *Settings) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, s)
	}
	return yaml.Unmarshal(data, s)
}

// SetDefaults fills unset fields. ConfigDir is left for the caller when
// empty so it can apply paths.ConfigDir without an import cycle.
func (s *Settings) SetDefaults() error {
	if s.Workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
		}
		s.Workspace = cwd
	}
	s.Workspace = expandHome(s.Workspace)
	s.ConfigDir = expandHome(s.ConfigDir)
	if s.DatapacksDir == "" {
		s.DatapacksDir = filepath.Join(s.Workspace, "datapacks")
	}
	s.DatapacksDir = expandHome(s.DatapacksDir)
	if s.TickInterval == "" {
		s.TickInterval = DefaultTickInterval.String()
	}
	if s.ConsolePrivileged == nil {
		privileged := true
		s.ConsolePrivileged = &privileged
	}
	return nil
}

// Validate checks semantic constraints.
func (s *Settings) Validate() error {
	interval, err := s.Interval()
	if err != nil {
		return err
	}
	if interval <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("tick_interval must be positive, got %s", s.TickInterval)).
			WithDetail("tick_interval", s.TickInterval)
	}
	if s.Listen != "" && s.OperatorToken == "" {
		return errors.ConfigInvalid("listen requires operator_token").
			WithDetail("listen", s.Listen)
	}
	return nil
}

// Interval parses TickInterval.
func (s *Settings) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(s.TickInterval)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid tick_interval").
			WithDetail("tick_interval", s.TickInterval)
	}
	return d, nil
}

// IsConsolePrivileged reports whether console output counts as a privileged listener.
func (s *Settings) IsConsolePrivileged() bool {
	return s.ConsolePrivileged == nil || *s.ConsolePrivileged
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// expandHome expands a leading tilde.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
