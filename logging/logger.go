package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/packreload/config"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	settings       *config.LoggingSettings
	settingsLoaded bool
)

// Configure installs logging settings for loggers created afterwards and
// re-applies them to loggers that already exist.
func Configure(s config.LoggingSettings) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	settings = &s
	settingsLoaded = true
	for _, entry := range loggers {
		apply(entry.Logger, s)
	}
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	if !settingsLoaded {
		settingsLoaded = true
		if s, err := config.LoadSettings(paths.SettingsPath()); err == nil {
			settings = &s.Logging
		} else {
			logrus.Warnf("Failed to load logging settings: %v", err)
		}
	}

	var logCfg config.LoggingSettings
	if settings != nil {
		logCfg = *settings
	}

	logger := logrus.New()
	apply(logger, logCfg)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// apply configures level, formatter and sinks on logger.
func apply(logger *logrus.Logger, logCfg config.LoggingSettings) {
	levelStr := "info"
	if env := os.Getenv("PACKRELOAD_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetReportCaller(os.Getenv("PACKRELOAD_LOG_CALLER") == "true" || logCfg.ReportCaller)

	switch logCfg.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{})
	}

	var writers []io.Writer

	logFilePath := LogFilePath(logCfg)
	if logFilePath != "" {
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			if logCfg.File != "" {
				logger.Warnf("Failed to create log directory %s: %v", dir, err)
			}
		} else {
			file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, file)
			} else if logCfg.File != "" {
				logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
			}
		}
	}

	stderrMode := "auto"
	if logCfg.StructuredToStderr != "" {
		stderrMode = logCfg.StructuredToStderr
	}

	shouldLogToStderr := false
	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
		shouldLogToStderr = false
	default:
		// Interactive terminals only see structured logs in debug mode.
		isDebug := logger.GetLevel() >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		shouldLogToStderr = isDebug || !isInteractive
	}
	if shouldLogToStderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

// LogFilePath returns the operational log file: the configured path, or
// <state dir>/logs/packreload-<date>.log. All components share it and are
// told apart by the component field.
func LogFilePath(logCfg config.LoggingSettings) string {
	if logCfg.File != "" {
		return expandPath(logCfg.File)
	}
	dir := paths.LogDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, fmt.Sprintf("packreload-%s.log", time.Now().Format("2006-01-02")))
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
