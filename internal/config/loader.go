package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a strategy document. The format follows the file extension:
// .toml is TOML, anything else (.json, .yaml, .yml) goes through the YAML
// decoder, which also accepts JSON.
func Load(path string) (*Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	s, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("strategy config %s: %w", path, err)
	}
	return s, nil
}

// Format names a strategy document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes and validates a strategy document. Every key of Strategy must
// be present and no other keys are accepted.
func Parse(data []byte, format Format) (*Strategy, error) {
	raw := map[string]interface{}{}
	var s Strategy

	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if err := checkKeys(raw, reflect.TypeOf(s), "toml", ""); err != nil {
			return nil, err
		}
		if _, err := toml.Decode(string(data), &s); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if err := checkKeys(raw, reflect.TypeOf(s), "yaml", ""); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// checkKeys compares a decoded document against the struct's tags. Nested
// structs must appear as nested tables.
func checkKeys(raw map[string]interface{}, t reflect.Type, tag, prefix string) error {
	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get(tag)
		if name == "" || name == "-" {
			continue
		}
		known[name] = true
		path := prefix + name

		v, ok := raw[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingKey, path)
		}
		if f.Type.Kind() == reflect.Struct {
			nested, ok := v.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%w: %s must be a table", ErrInvalidValue, path)
			}
			if err := checkKeys(nested, f.Type, tag, path+"."); err != nil {
				return err
			}
		}
	}

	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, prefix+k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
	}
	return nil
}
