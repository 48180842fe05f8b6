package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/registry"
)

func TestGetDefaultConfig_CoversSupportedLanguages(t *testing.T) {
	config := GetDefaultConfig()

	if config.Pool.MaxConnections != constants.DefaultMaxConnections {
		t.Errorf("Expected max connections %d, got %d", constants.DefaultMaxConnections, config.Pool.MaxConnections)
	}
	if time.Duration(config.Pool.AcquireTimeout) != constants.DefaultAcquireTimeout {
		t.Errorf("Expected acquire timeout %v, got %v", constants.DefaultAcquireTimeout, config.Pool.AcquireTimeout)
	}
	if time.Duration(config.Pool.MaxIdleTime) != constants.DefaultMaxIdleTime {
		t.Errorf("Expected max idle time %v, got %v", constants.DefaultMaxIdleTime, config.Pool.MaxIdleTime)
	}

	for _, name := range registry.GetLanguageNames() {
		server := config.GetServer(name)
		if server == nil {
			t.Errorf("Expected a default server entry for %s", name)
			continue
		}
		if server.Command == "" {
			t.Errorf("Expected a command for %s", name)
		}
	}
}

func TestSaveAndLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config := GetDefaultConfig()
	config.Servers["go"].WorkingDir = "/srv/projects"
	if err := SaveConfig(config, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Pool.MaxConnections != constants.DefaultMaxConnections {
		t.Errorf("Expected max connections %d, got %d", constants.DefaultMaxConnections, loaded.Pool.MaxConnections)
	}
	goServer := loaded.GetServer("go")
	if goServer == nil || goServer.Command != "gopls" {
		t.Errorf("Expected the go server to survive the round trip, got %+v", goServer)
	}
	if goServer != nil && goServer.WorkingDir != "/srv/projects" {
		t.Errorf("Expected working_dir to survive the round trip, got %q", goServer.WorkingDir)
	}
}

func TestLoadConfig_ParsesDurationsAndDefaultsRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `pool:
  max_connections: 3
  acquire_timeout: 2s
servers:
  go:
    command: gopls
    args: ["serve"]
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Pool.MaxConnections != 3 {
		t.Errorf("Expected max connections 3, got %d", config.Pool.MaxConnections)
	}
	if time.Duration(config.Pool.AcquireTimeout) != 2*time.Second {
		t.Errorf("Expected acquire timeout 2s, got %v", time.Duration(config.Pool.AcquireTimeout))
	}
	if time.Duration(config.Pool.MaxIdleTime) != constants.DefaultMaxIdleTime {
		t.Errorf("Expected unset max idle time to default to %v, got %v",
			constants.DefaultMaxIdleTime, time.Duration(config.Pool.MaxIdleTime))
	}
	if len(config.Servers) != 1 {
		t.Errorf("Expected only the configured server, got %d", len(config.Servers))
	}
}

func TestLoadConfig_MissingServersGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `pool:
  max_connections: 5
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.GetServer("go") == nil {
		t.Error("Expected default servers when none are configured")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name: "unknown language",
			raw: `servers:
  cobol:
    command: cobol-ls
`,
			wantErr: "unsupported language",
		},
		{
			name: "missing command",
			raw: `servers:
  go:
    args: ["serve"]
`,
			wantErr: "command is required",
		},
		{
			name: "bad duration",
			raw: `pool:
  acquire_timeout: banana
`,
			wantErr: "invalid duration",
		},
		{
			name: "negative max connections",
			raw: `pool:
  max_connections: -1
`,
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.raw), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestGenerateDefaultConfig_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	if err := GenerateDefaultConfig(path); err != nil {
		t.Fatalf("GenerateDefaultConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected the config file to exist: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Errorf("Expected the generated config to load cleanly: %v", err)
	}
}

func TestDuration_MarshalsAsString(t *testing.T) {
	data, err := yaml.Marshal(Duration(90 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "1m30s" {
		t.Errorf("Expected 1m30s, got %q", strings.TrimSpace(string(data)))
	}
}

func TestGetServer_NilSafety(t *testing.T) {
	var config *Config
	if config.GetServer("go") != nil {
		t.Error("Expected nil for a nil config")
	}

	config = &Config{}
	if config.GetServer("go") != nil {
		t.Error("Expected nil when no servers are configured")
	}
}
