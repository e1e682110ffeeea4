package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hpkotak/aiplatform/internal/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	_, _ = fmt.Fprintf(ioOut, "Config file: %s\n\n", config.Path())
	_, _ = fmt.Fprint(ioOut, string(data))

	secrets := loadSecrets()
	_, _ = fmt.Fprintln(ioOut, "\napi keys:")
	for _, p := range config.Providers {
		if p == "ollama" {
			continue
		}
		state := "not set"
		if secrets.APIKey(p) != "" {
			state = "set"
		}
		_, _ = fmt.Fprintf(ioOut, "  %s: %s\n", p, state)
	}
	return nil
}
