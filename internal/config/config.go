// Package config manages the aiplatform configuration file at
// ~/.aiplatform/config.yaml. API keys are never stored in the file; they are
// read from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("config file not found")

// Providers lists the supported provider names.
var Providers = []string{"ollama", "openai", "anthropic", "mistral"}

// StoreDrivers lists the supported message store backends.
var StoreDrivers = []string{"memory", "file", "redis", "sqlite"}

type Config struct {
	Provider  string   `yaml:"provider"`
	Model     string   `yaml:"model"`
	Ollama    Endpoint `yaml:"ollama"`
	OpenAI    Endpoint `yaml:"openai"`
	Anthropic Endpoint `yaml:"anthropic"`
	Mistral   Endpoint `yaml:"mistral"`
	Store     Store    `yaml:"store"`
	Log       Log      `yaml:"log"`
	Server    Server   `yaml:"server"`
}

// Endpoint is a provider base URL.
type Endpoint struct {
	Host string `yaml:"host"`
}

// Store selects where chat history is kept.
type Store struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
	Key       string `yaml:"key"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotating log file in addition to stderr.
	File string `yaml:"file,omitempty"`
}

type Server struct {
	Port int `yaml:"port"`
}

// Dir returns the config directory path (~/.aiplatform).
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aiplatform")
}

// Path returns the config file path (~/.aiplatform/config.yaml).
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Exists checks if the config file exists.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads and parses the config file, then applies environment overrides.
// Returns ErrNotFound if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := loadFrom(Path())
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, newEnv())
	return cfg, nil
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func Save(cfg *Config) error {
	return saveTo(Path(), cfg)
}

func saveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func marshalConfig(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Provider:  "ollama",
		Model:     "llama3.2",
		Ollama:    Endpoint{Host: "http://localhost:11434"},
		OpenAI:    Endpoint{Host: "https://api.openai.com/v1"},
		Anthropic: Endpoint{Host: "https://api.anthropic.com/v1"},
		Mistral:   Endpoint{Host: "https://api.mistral.ai/v1"},
		Store: Store{
			Driver: "file",
			Path:   filepath.Join(Dir(), "history.json"),
			Key:    "default",
		},
		Log:    Log{Level: "info", Format: "console"},
		Server: Server{Port: 8080},
	}
}

// Host returns the base URL configured for provider.
func (c *Config) Host(provider string) string {
	switch provider {
	case "ollama":
		return c.Ollama.Host
	case "openai":
		return c.OpenAI.Host
	case "anthropic":
		return c.Anthropic.Host
	case "mistral":
		return c.Mistral.Host
	default:
		return ""
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.Provider) {
		return fmt.Errorf("unsupported provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model cannot be empty")
	}
	for _, p := range Providers {
		host := c.Host(p)
		if host == "" {
			continue
		}
		if _, err := url.ParseRequestURI(host); err != nil {
			return fmt.Errorf("invalid %s host %q: %w", p, host, err)
		}
	}
	if !slices.Contains(StoreDrivers, c.Store.Driver) {
		return fmt.Errorf("unsupported store driver %q (want one of %s)", c.Store.Driver, strings.Join(StoreDrivers, ", "))
	}
	if c.Store.Driver == "redis" && strings.TrimSpace(c.Store.RedisAddr) == "" {
		return fmt.Errorf("store.redis_addr is required for the redis store")
	}
	if (c.Store.Driver == "file" || c.Store.Driver == "sqlite") && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required for the %s store", c.Store.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Set updates a dotted key such as "ollama.host" or "store.driver".
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "provider":
		c.Provider = value
	case "model":
		if value == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.Model = value
	case "ollama.host", "openai.host", "anthropic.host", "mistral.host":
		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("invalid URL %q: %w", value, err)
		}
		switch key {
		case "ollama.host":
			c.Ollama.Host = value
		case "openai.host":
			c.OpenAI.Host = value
		case "anthropic.host":
			c.Anthropic.Host = value
		case "mistral.host":
			c.Mistral.Host = value
		}
	case "store.driver":
		c.Store.Driver = value
	case "store.path":
		c.Store.Path = value
	case "store.redis_addr":
		c.Store.RedisAddr = value
	case "store.key":
		c.Store.Key = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "log.file":
		c.Log.File = value
	case "server.port":
		var port int
		if _, err := fmt.Sscanf(value, "%d", &port); err != nil {
			return fmt.Errorf("invalid port %q", value)
		}
		c.Server.Port = port
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
