package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hpkotak/aiplatform/internal/tokenizer"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <text>",
	Short: "Estimate the token count of text locally",
	Long: `Estimate how many tokens text takes with the tiktoken encoding of the
model. Models without a known encoding use cl100k_base and the count is
marked approximate. Provider usage is always what the provider reports.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, args []string) error {
	name := modelFlag
	if name == "" {
		if cfg, err := loadConfig(); err == nil {
			name = cfg.Model
		}
	}

	counter, err := tokenizer.ForModel(name)
	if err != nil {
		return err
	}
	n := counter.Count(strings.Join(args, " "))
	if counter.Approximate {
		_, _ = fmt.Fprintf(ioOut, "~%d tokens (%s)\n", n, tokenizer.FallbackEncoding)
		return nil
	}
	_, _ = fmt.Fprintf(ioOut, "%d tokens\n", n)
	return nil
}
