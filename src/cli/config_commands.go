package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lsp-pool/src/config"
	"lsp-pool/src/internal/common"
)

// loadConfigOrDefault resolves the configuration for CLI commands. An
// explicit path must load cleanly. Without one, the default path is used
// when it exists and falls back to the built-in defaults when it does not
// or fails to parse.
func loadConfigOrDefault(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}

	defaultPath := config.GetDefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.LoadConfig(defaultPath)
		if err != nil {
			common.CLILogger.Warn("Failed to load config from %s, using defaults: %v", defaultPath, err)
			return config.GetDefaultConfig(), nil
		}
		return cfg, nil
	}
	return config.GetDefaultConfig(), nil
}

// ShowConfig prints the effective configuration as YAML.
func ShowConfig(configPath string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// InitConfig writes the default configuration to the target path.
func InitConfig(configPath string, force bool) error {
	target := configPath
	if target == "" {
		target = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", target)
	}

	if err := config.GenerateDefaultConfig(target); err != nil {
		return err
	}
	common.CLILogger.Info("Wrote default configuration to %s", target)
	return nil
}
