// Package schemafile loads schema definitions from TOML, YAML or JSON files.
package schemafile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/sproto/internal/protocol/schema"
	"github.com/goccy/go-yaml"
	"github.com/mitchellh/go-homedir"
)

// Format names a definition file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("schema file %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

// Parse decodes a Definition without importing it. Unknown keys are errors.
func Parse(data []byte, format Format) (schema.Definition, error) {
	var def schema.Definition
	switch format {
	case FormatTOML:
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&def)
		if err != nil {
			return schema.Definition{}, fmt.Errorf("parse toml schema: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return schema.Definition{}, fmt.Errorf("parse toml schema: unknown key %q", undecoded[0].String())
		}
	case FormatYAML, FormatJSON:
		if err := yaml.UnmarshalWithOptions(data, &def, yaml.DisallowUnknownField()); err != nil {
			return schema.Definition{}, fmt.Errorf("parse %s schema: %w", format, err)
		}
	default:
		return schema.Definition{}, fmt.Errorf("unknown schema format %q", format)
	}
	return def, nil
}

// Load reads, parses and imports the definition at path.
func Load(path string) (*schema.Schema, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("schema path %s: %w", path, err)
	}
	format, err := FormatFor(expanded)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	s, err := schema.Import(def)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}
