package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hpkotak/aiplatform/internal/config"
)

var saveConfig = config.Save

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update a configuration value",
	Long: `Update a configuration value. Supported keys:
  provider          ollama, openai, anthropic or mistral
  model             Model name, optionally with defaults (gpt-4o?temperature=0.2)
  ollama.host       Ollama server URL
  openai.host       OpenAI API base URL
  anthropic.host    Anthropic API base URL
  mistral.host      Mistral API base URL
  store.driver      memory, file, redis or sqlite
  store.path        File or SQLite database path
  store.redis_addr  Redis address (host:port)
  store.key         Conversation key
  log.level         debug, info, warn or error
  log.format        console or json
  log.file          Rotating log file path
  server.port       Port for 'aip serve'

API keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY and MISTRAL_API_KEY
(or the AIP_ prefixed names) and are never written to the config file.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		if !errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(ioOut, "Set %s = %s\n", key, value)
	return nil
}
