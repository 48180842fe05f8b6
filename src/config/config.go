// Package config loads and saves the YAML configuration for the pool and
// the language servers it spawns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/registry"
)

// Duration wraps time.Duration so YAML values like "30s" or "5m" parse.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q (use values like \"30s\" or \"5m\"): %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config contains the pool settings and per-language server configuration
type Config struct {
	Pool    PoolConfig               `yaml:"pool"`
	Servers map[string]*ServerConfig `yaml:"servers"`
}

// PoolConfig controls pool sizing and maintenance
type PoolConfig struct {
	MaxConnections  int      `yaml:"max_connections"`
	AcquireTimeout  Duration `yaml:"acquire_timeout"`
	MaxIdleTime     Duration `yaml:"max_idle_time"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// ServerConfig contains configuration for a single LSP server
type ServerConfig struct {
	Command               string      `yaml:"command"`
	Args                  []string    `yaml:"args"`
	WorkingDir            string      `yaml:"working_dir,omitempty"`
	InitializationOptions interface{} `yaml:"initialization_options,omitempty"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig generates a default configuration file
func GenerateDefaultConfig(path string) error {
	return SaveConfig(GetDefaultConfig(), path)
}

// applyDefaults fills unset pool settings and servers with the defaults.
func applyDefaults(config *Config) {
	if config.Pool.MaxConnections == 0 {
		config.Pool.MaxConnections = constants.DefaultMaxConnections
	}
	if config.Pool.AcquireTimeout == 0 {
		config.Pool.AcquireTimeout = Duration(constants.DefaultAcquireTimeout)
	}
	if config.Pool.MaxIdleTime == 0 {
		config.Pool.MaxIdleTime = Duration(constants.DefaultMaxIdleTime)
	}
	if config.Pool.CleanupInterval == 0 {
		config.Pool.CleanupInterval = Duration(constants.DefaultCleanupInterval)
	}
	if config.Servers == nil {
		config.Servers = GetDefaultConfig().Servers
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Pool.MaxConnections < 0 {
		return fmt.Errorf("pool.max_connections must not be negative")
	}
	if config.Pool.AcquireTimeout < 0 || config.Pool.MaxIdleTime < 0 || config.Pool.CleanupInterval < 0 {
		return fmt.Errorf("pool timeouts must not be negative")
	}

	for language, serverConfig := range config.Servers {
		if err := registry.ValidateLanguage(language); err != nil {
			return err
		}
		if serverConfig == nil || serverConfig.Command == "" {
			return fmt.Errorf("command is required for language %s", language)
		}
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lsp-pool", "config.yaml")
}

// GetDefaultConfig returns the default configuration, with one server entry
// per supported language taken from the language registry.
func GetDefaultConfig() *Config {
	servers := make(map[string]*ServerConfig)
	for _, info := range registry.GetSupportedLanguages() {
		servers[info.Name] = &ServerConfig{
			Command:               info.DefaultCommand,
			Args:                  append([]string(nil), info.DefaultArgs...),
			InitializationOptions: info.GetInitOptions(),
		}
	}
	return &Config{
		Pool: PoolConfig{
			MaxConnections:  constants.DefaultMaxConnections,
			AcquireTimeout:  Duration(constants.DefaultAcquireTimeout),
			MaxIdleTime:     Duration(constants.DefaultMaxIdleTime),
			CleanupInterval: Duration(constants.DefaultCleanupInterval),
		},
		Servers: servers,
	}
}

// GetServer returns the server configuration for a language, or nil.
func (c *Config) GetServer(language string) *ServerConfig {
	if c == nil || c.Servers == nil {
		return nil
	}
	return c.Servers[language]
}
