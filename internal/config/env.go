package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Secrets are API keys read from the environment.
type Secrets struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MistralAPIKey   string
}

// APIKey returns the key for provider, empty when none is needed or set.
func (s Secrets) APIKey(provider string) string {
	switch provider {
	case "openai":
		return s.OpenAIAPIKey
	case "anthropic":
		return s.AnthropicAPIKey
	case "mistral":
		return s.MistralAPIKey
	default:
		return ""
	}
}

// newEnv binds every environment variable the config understands. AIP_*
// names win over the vendor names.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai_api_key", "AIP_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "AIP_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("mistral_api_key", "AIP_MISTRAL_API_KEY", "MISTRAL_API_KEY")
	return v
}

// LoadSecrets reads API keys from the environment.
func LoadSecrets() Secrets {
	return secretsFrom(newEnv())
}

func secretsFrom(v *viper.Viper) Secrets {
	return Secrets{
		OpenAIAPIKey:    strings.TrimSpace(v.GetString("openai_api_key")),
		AnthropicAPIKey: strings.TrimSpace(v.GetString("anthropic_api_key")),
		MistralAPIKey:   strings.TrimSpace(v.GetString("mistral_api_key")),
	}
}

// applyEnv overrides file settings with AIP_PROVIDER, AIP_MODEL,
// AIP_OLLAMA_HOST, AIP_LOG_LEVEL and AIP_STORE_DRIVER.
func applyEnv(cfg *Config, v *viper.Viper) {
	set := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
	set("provider", &cfg.Provider)
	set("model", &cfg.Model)
	set("ollama.host", &cfg.Ollama.Host)
	set("log.level", &cfg.Log.Level)
	set("store.driver", &cfg.Store.Driver)
}
