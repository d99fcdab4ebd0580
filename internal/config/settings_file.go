package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrSettingsNotFound = errors.New("settings file not found")
	ErrSettingsParsing  = errors.New("settings file parsing failed")
)

// SettingsFile carries operator-editable values that seed the app_settings
// table at startup. Values already present in the table are not overwritten.
type SettingsFile struct {
	WebhookURL string `yaml:"webhook_url"`
}

// LoadSettingsFile loads and parses an optional YAML settings file.
func LoadSettingsFile(path string) (*SettingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SettingsFile{}, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := &SettingsFile{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettingsParsing, err)
	}
	return settings, nil
}
