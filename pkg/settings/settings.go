// Package settings manages persistent user settings for the loopctl CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// NSOAddress is the NSO host[:port] to use when --nso is not specified
	NSOAddress string `json:"nso_address,omitempty"`

	// NSOUsername is the default RESTCONF username
	NSOUsername string `json:"nso_username,omitempty"`

	// IntentPath is the intent file to use when -f is not specified
	IntentPath string `json:"intent_path,omitempty"`

	// InventoryPath is the SSH inventory for `loopctl show`
	InventoryPath string `json:"inventory_path,omitempty"`

	// AuditLogPath overrides the default audit log location
	AuditLogPath string `json:"audit_log_path,omitempty"`

	// JournalAddress is the Redis host:port for the apply journal
	JournalAddress string `json:"journal_address,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "loopctl_settings.json"
	}
	return filepath.Join(home, ".loopctl", "settings.json")
}

// DefaultAuditLogPath returns the default audit log location
func DefaultAuditLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "loopctl_audit.log"
	}
	return filepath.Join(home, ".loopctl", "audit.log")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Get returns a setting value by key
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "nso":
		return s.NSOAddress, nil
	case "nso-username":
		return s.NSOUsername, nil
	case "intent":
		return s.IntentPath, nil
	case "inventory":
		return s.InventoryPath, nil
	case "audit-log":
		return s.AuditLogPath, nil
	case "journal":
		return s.JournalAddress, nil
	default:
		return "", fmt.Errorf("unknown setting: %s", key)
	}
}

// Set updates a setting value by key
func (s *Settings) Set(key, value string) error {
	switch key {
	case "nso":
		s.NSOAddress = value
	case "nso-username":
		s.NSOUsername = value
	case "intent":
		s.IntentPath = value
	case "inventory":
		s.InventoryPath = value
	case "audit-log":
		s.AuditLogPath = value
	case "journal":
		s.JournalAddress = value
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}

// Keys returns the settable keys
func Keys() []string {
	return []string{"nso", "nso-username", "intent", "inventory", "audit-log", "journal"}
}
