package clawbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonmerge"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds global configuration for clawbox
type Config struct {
	// RuntimeHome is the path to the runtime's home directory (default: ~/.clawdbot)
	RuntimeHome string `yaml:"runtime_home"`

	// DataDir is the path to clawbox's own data directory (default: ~/.config/clawbox)
	DataDir string `yaml:"data_dir"`

	// GatewayExternalPort is the host port published for the gateway channel
	GatewayExternalPort int `yaml:"gateway_external_port"`

	// BrowserExternalPort is the host port published for the browser channel
	BrowserExternalPort int `yaml:"browser_external_port"`

	// StrictSelfTest makes the container entrypoint abort when its startup
	// self-test fails instead of staying up for debugging
	StrictSelfTest bool `yaml:"strict_self_test"`
}

// LoadConfig loads the global clawbox configuration from ~/.config/clawbox/config.yaml
// Creates the ~/.config/clawbox directory if it doesn't exist
// Returns sensible defaults if config file doesn't exist
func LoadConfig() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Default configuration - use XDG-style ~/.config/clawbox
	config := &Config{
		RuntimeHome:         filepath.Join(homeDir, ".clawdbot"),
		DataDir:             filepath.Join(homeDir, ".config", "clawbox"),
		GatewayExternalPort: DefaultGatewayExternalPort,
		BrowserExternalPort: DefaultBrowserExternalPort,
	}

	// Ensure ~/.config/clawbox directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clawbox data directory: %w", err)
	}

	// Try to load config file
	configPath := filepath.Join(config.DataDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Config doesn't exist, return defaults
			zlog.Debug("no config file found, using defaults",
				zap.String("config_path", configPath))
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure paths are absolute and expanded
	config.RuntimeHome = expandPath(config.RuntimeHome)
	config.DataDir = expandPath(config.DataDir)

	zlog.Debug("loaded config",
		zap.String("config_path", configPath),
		zap.String("runtime_home", config.RuntimeHome),
		zap.String("data_dir", config.DataDir),
		zap.Int("gateway_external_port", config.GatewayExternalPort),
		zap.Int("browser_external_port", config.BrowserExternalPort))

	return config, nil
}

// SaveConfig saves the global configuration to ~/.config/clawbox/config.yaml
func SaveConfig(config *Config) error {
	configPath := filepath.Join(config.DataDir, "config.yaml")

	// Ensure directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create clawbox data directory: %w", err)
	}

	// Serialize to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	zlog.Debug("saved config", zap.String("config_path", configPath))
	return nil
}

// SettingsPath returns the path of the runtime's provider settings file
// (settings.json inside the runtime home).
func SettingsPath(config *Config) string {
	return filepath.Join(config.RuntimeHome, "settings.json")
}

// ReadSettings reads the runtime's settings.json. A missing file yields an
// empty document, not an error.
func ReadSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies a merge patch (RFC 7386 semantics) to the runtime's
// settings.json. Keys not named in the patch are preserved, so user
// customizations survive clawbox updating the provider section.
func UpdateSettings(path string, patch map[string]any) error {
	current, err := ReadSettings(path)
	if err != nil {
		return err
	}

	result, err := jsonmerge.Merge(current, patch)
	if err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}

	data, err := json.MarshalIndent(result.Doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	zlog.Debug("updated settings", zap.String("path", path))
	return nil
}

// expandPath expands ~ to home directory and makes path absolute
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
