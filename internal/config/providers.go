package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider kinds supported by the calendar adapters.
const (
	ProviderKindGoogle = "google"
	ProviderKindICS    = "ics"
)

// ProviderConfig describes one podologist and the calendar backing their agenda.
type ProviderConfig struct {
	// Key is the stable owner key used in slots and appointment records.
	Key string `yaml:"key" json:"key"`
	// Name is the display name shown to patients.
	Name string `yaml:"name" json:"name"`
	// Kind selects the adapter: "google" or "ics".
	Kind string `yaml:"kind" json:"kind"`
	// CalendarID is the Google Calendar ID (google kind only).
	CalendarID string `yaml:"calendar_id,omitempty" json:"calendar_id,omitempty"`
	// URL is the ICS feed endpoint (ics kind only).
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProviders reads and validates the YAML provider directory at path.
func LoadProviders(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read providers file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes a YAML provider directory.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: decode providers: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, errors.New("config: no providers configured")
	}

	seen := make(map[string]struct{}, len(file.Providers))
	out := make([]ProviderConfig, 0, len(file.Providers))
	for i, p := range file.Providers {
		p.Key = strings.TrimSpace(p.Key)
		p.Name = strings.TrimSpace(p.Name)
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Key == "" {
			return nil, fmt.Errorf("config: provider %d: key required", i)
		}
		if _, dup := seen[p.Key]; dup {
			return nil, fmt.Errorf("config: provider %q declared twice", p.Key)
		}
		seen[p.Key] = struct{}{}
		if p.Name == "" {
			p.Name = p.Key
		}
		switch p.Kind {
		case ProviderKindGoogle:
			if strings.TrimSpace(p.CalendarID) == "" {
				return nil, fmt.Errorf("config: provider %q: calendar_id required for google", p.Key)
			}
		case ProviderKindICS:
			if strings.TrimSpace(p.URL) == "" {
				return nil, fmt.Errorf("config: provider %q: url required for ics", p.Key)
			}
		default:
			return nil, fmt.Errorf("config: provider %q: unknown kind %q", p.Key, p.Kind)
		}
		out = append(out, p)
	}
	return out, nil
}
