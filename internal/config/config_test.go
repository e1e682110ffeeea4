package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.Model = "claude-sonnet-4-5"
	cfg.Store = Store{Driver: "redis", RedisAddr: "localhost:6379", Key: "work"}

	if err := saveTo(configPath, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := loadFrom(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Provider != cfg.Provider {
		t.Errorf("Provider = %q, want %q", loaded.Provider, cfg.Provider)
	}
	if loaded.Model != cfg.Model {
		t.Errorf("Model = %q, want %q", loaded.Model, cfg.Model)
	}
	if loaded.Store != cfg.Store {
		t.Errorf("Store = %+v, want %+v", loaded.Store, cfg.Store)
	}
	if loaded.Ollama.Host != cfg.Ollama.Host {
		t.Errorf("Ollama.Host = %q, want %q", loaded.Ollama.Host, cfg.Ollama.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := loadFrom("/nonexistent/path/config.yaml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("provider: openai\nmodel: gpt-4o-mini\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := loadFrom(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAI.Host != Default().OpenAI.Host {
		t.Errorf("OpenAI.Host = %q, want default", cfg.OpenAI.Host)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("provider: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadFrom(configPath); err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("error = %v, want parsing error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "afm" }, wantErr: "unsupported provider"},
		{name: "empty model", mutate: func(c *Config) { c.Model = " " }, wantErr: "model cannot be empty"},
		{name: "bad host", mutate: func(c *Config) { c.OpenAI.Host = "not a url" }, wantErr: "invalid openai host"},
		{name: "bad store", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "unsupported store driver"},
		{name: "redis without addr", mutate: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "redis_addr"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store = Store{Driver: "sqlite"} }, wantErr: "store.path"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSet(t *testing.T) {
	cfg := Default()
	for key, value := range map[string]string{
		"provider":       "mistral",
		"mistral.host":   "https://eu.mistral.example/v1",
		"store.driver":   "sqlite",
		"store.path":     "/tmp/history.db",
		"log.level":      "debug",
		"server.port":    "9090",
		"anthropic.host": "https://proxy.example/v1",
	} {
		if err := cfg.Set(key, value); err != nil {
			t.Fatalf("Set(%q) error: %v", key, err)
		}
	}
	if cfg.Provider != "mistral" || cfg.Mistral.Host != "https://eu.mistral.example/v1" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Server.Port != 9090 || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Host("anthropic") != "https://proxy.example/v1" {
		t.Errorf("Host(anthropic) = %q", cfg.Host("anthropic"))
	}

	for _, bad := range [][2]string{{"model", ""}, {"ollama.host", "::"}, {"server.port", "abc"}, {"afm.command", "x"}} {
		if err := cfg.Set(bad[0], bad[1]); err == nil {
			t.Errorf("Set(%q, %q) expected error", bad[0], bad[1])
		}
	}
}

func TestSecretsPreferPrefixedVariables(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "vendor-key")
	t.Setenv("AIP_OPENAI_API_KEY", "aip-key")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("AIP_ANTHROPIC_API_KEY", "")
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("AIP_MISTRAL_API_KEY", "")

	s := LoadSecrets()
	if s.APIKey("openai") != "aip-key" {
		t.Errorf("openai key = %q, want aip-key", s.OpenAIAPIKey)
	}
	if s.APIKey("anthropic") != "anthropic-key" {
		t.Errorf("anthropic key = %q, want anthropic-key", s.AnthropicAPIKey)
	}
	if s.APIKey("mistral") != "" || s.APIKey("ollama") != "" {
		t.Errorf("unexpected keys: %+v", s)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AIP_PROVIDER", "openai")
	t.Setenv("AIP_MODEL", "gpt-4o")
	t.Setenv("AIP_OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("AIP_LOG_LEVEL", "")

	cfg := Default()
	applyEnv(cfg, newEnv())
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.Ollama.Host != "http://gpu-box:11434" {
		t.Errorf("Ollama.Host = %q", cfg.Ollama.Host)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("empty env must not override, Log.Level = %q", cfg.Log.Level)
	}
}
