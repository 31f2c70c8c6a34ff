package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grovetools/packreload/errors"
	"github.com/grovetools/packreload/schema"
	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const settingsSchemaName = "packreload.schema.json"

var (
	settingsValidatorOnce sync.Once
	settingsValidator     *schema.Validator
	settingsValidatorErr  error
)

// GenerateSettingsSchema reflects Settings into a JSON Schema. Property names
// follow the yaml tags, which the toml tags mirror. Unknown keys are rejected.
func GenerateSettingsSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		FieldNameTag:               "yaml",
	}

	s := r.Reflect(&Settings{})
	s.Title = "packreload settings"
	s.Description = "Settings for the standalone packreload host."

	return json.MarshalIndent(s, "", "  ")
}

// validateSettingsDocument decodes data with the format implied by path and
// checks it against the settings schema.
func validateSettingsDocument(path string, data []byte) error {
	settingsValidatorOnce.Do(func() {
		raw, err := GenerateSettingsSchema()
		if err != nil {
			settingsValidatorErr = err
			return
		}
		settingsValidator, settingsValidatorErr = schema.NewValidator(settingsSchemaName, raw)
	})
	if settingsValidatorErr != nil {
		return errors.Wrap(settingsValidatorErr, errors.ErrCodeInternal, "settings schema unavailable")
	}

	var doc map[string]interface{}
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse settings file").
			WithDetail("path", path)
	}
	if doc == nil {
		return nil
	}

	if err := settingsValidator.Validate(doc); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("%s: %v", path, err)).
			WithDetail("path", path)
	}
	return nil
}
