package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/grovetools/packreload/errors"
	"github.com/mitchellh/mapstructure"
)

const (
	// ToolchainFileName is the name of the toolchain config file inside the config dir.
	ToolchainFileName = "packscript_reloader.txt"

	// DefaultInterpreter is used when the config file does not name one.
	DefaultInterpreter = "python3"
)

// defaultToolchainContents is written once, when the config file is absent.
const defaultToolchainContents = "python=" + DefaultInterpreter + "\nauto-update=true\n"

// Toolchain is the toolchain config. It is loaded once at bootstrap and
// never reloaded for the life of the process.
type Toolchain struct {
	// Interpreter runs the compiler script.
	Interpreter string `mapstructure:"python" yaml:"python" json:"python"`
	// AutoUpdate enables the initial download and self-update of the compiler.
	AutoUpdate bool `mapstructure:"auto-update" yaml:"auto-update" json:"auto-update"`
}

// DefaultToolchain returns the config used when keys are absent.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Interpreter: DefaultInterpreter,
		AutoUpdate:  true,
	}
}

// ToolchainPath returns the toolchain config file path within dir.
func ToolchainPath(dir string) string {
	return filepath.Join(dir, ToolchainFileName)
}

// LoadToolchain ensures dir exists, writes the default config file if none is
// there yet, and parses it. An existing file is never overwritten.
//
// A file that exists but cannot be read fails with ErrCodeConfigUnreadable.
func LoadToolchain(dir string) (*Toolchain, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigUnreadable, "failed to create config directory").
			WithDetail("path", dir)
	}

	path := ToolchainPath(dir)
	// An existing file is left alone; other create failures surface on the read below.
	_ = createIfAbsent(path, []byte(defaultToolchainContents))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigUnreadable(path, err)
	}

	return ParseToolchain(data)
}

// ParseToolchain parses key=value lines. Lines without '=' and unknown keys
// are ignored; later lines override earlier ones.
func ParseToolchain(data []byte) (*Toolchain, error) {
	raw := make(map[string]interface{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to scan toolchain config")
	}

	cfg := DefaultToolchain()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: lenientBoolHook,
		Result:     &cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build toolchain decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode toolchain config")
	}
	return &cfg, nil
}

// lenientBoolHook maps any string onto a bool: "true" in any case is true,
// everything else is false. Malformed values never fail the load.
func lenientBoolHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	return strings.EqualFold(data.(string), "true"), nil
}

// createIfAbsent writes contents to path only if the file does not exist.
func createIfAbsent(path string, contents []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(contents); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
