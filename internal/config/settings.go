package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// settingsFile is the on-disk shape of a pattern/tolerance file. Categories
// it names replace the defaults; the rest keep them unless Replace is set.
//
//	replace: false
//	patterns:
//	  Equipment: '\b[A-Z]{1,2}-\d{3}\b'
//	  Instrument: {func: '\b[A-Z]{2,4}', num: '\d{3,5}\b', separator: '-?'}
//	tolerances:
//	  Instrument: {horizontal: 12, vertical: 8, autoLinkDistance: 60}
type settingsFile struct {
	Replace    bool                             `yaml:"replace"`
	Patterns   map[pid.Category]pid.PatternSpec `yaml:"patterns"`
	Tolerances map[pid.Category]pid.Tolerance   `yaml:"tolerances"`
}

// LoadSettings resolves the extraction settings. An empty path yields the
// defaults.
func LoadSettings(path string) (pid.Settings, error) {
	if path == "" {
		return pid.DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pid.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes a YAML settings document over the defaults
func ParseSettings(data []byte) (pid.Settings, error) {
	var file settingsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return pid.Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}

	settings := pid.DefaultSettings()
	if file.Replace {
		settings = pid.Settings{
			Patterns:   map[pid.Category]pid.PatternSpec{},
			Tolerances: map[pid.Category]pid.Tolerance{},
		}
	}
	for c, p := range file.Patterns {
		settings.Patterns[c] = p
	}
	for c, t := range file.Tolerances {
		settings.Tolerances[c] = t
	}

	if err := settings.Validate(); err != nil {
		return pid.Settings{}, err
	}
	return settings, nil
}

// MarshalSettings encodes settings in the settings-file format
func MarshalSettings(s pid.Settings) ([]byte, error) {
	out, err := yaml.Marshal(settingsFile{Replace: true, Patterns: s.Patterns, Tolerances: s.Tolerances})
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return out, nil
}
