// Package config overlays YAML configuration files onto typed defaults.
// ${VAR} references in the file are expanded from the environment before
// parsing, so secrets can stay out of the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadIfExists decodes filename over target and reports whether the file
// was read. Keys absent from the file keep the values already in target. A
// missing file or an empty name is not an error. Validation is left to the
// caller, which usually has further overrides to apply first.
func LoadIfExists[T any](filename string, target *T) (bool, error) {
	if filename == "" {
		return false, nil
	}
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return true, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return true, nil
}
