package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/bridge"
	"github.com/hpkotak/aiplatform/internal/bridge/ollama"
	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/logger"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/platform"
)

const invokeTimeout = 120 * time.Second

var (
	modelFlag    string
	providerFlag string
	streamFlag   bool
	systemFlag   string
	imageFlags   []string
)

// Package-level function variables for testability.
// Tests override these to avoid real provider calls.
var (
	loadConfig            = config.Load
	loadSecrets           = config.LoadSecrets
	newPlatform           = bridge.NewPlatform
	ioIn        io.Reader = os.Stdin
	ioOut       io.Writer = os.Stdout
	ioErr       io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "aip [prompt]",
	Short: "Talk to language models through one interface",
	Long: `aip sends prompts to Ollama, OpenAI, Anthropic or Mistral models through a
single platform and reports the token usage each provider returns.

Examples:
  aip what is the capital of France
  aip --provider openai --model gpt-4o-mini --stream tell me a joke
  aip --model gemma3 --image photo.png describe this picture`,
	Args:              cobra.ArbitraryArgs,
	RunE:              runPrompt,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override model for this invocation")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "override provider (ollama, openai, anthropic, mistral)")
	rootCmd.Flags().BoolVar(&streamFlag, "stream", false, "print the reply as it is generated")
	rootCmd.Flags().StringVar(&systemFlag, "system", "", "system prompt")
	rootCmd.Flags().StringSliceVar(&imageFlags, "image", nil, "attach an image file (repeatable)")
}

func Execute() error {
	return rootCmd.Execute()
}

// settings loads the config file; commands cannot run without one.
func settings() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("no config found. Run 'aip setup' to get started")
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// session is a platform built from the config and the flags.
type session struct {
	platform *platform.Platform
	model    string
	logger   *zap.Logger
}

func openSession(cfg *config.Config) (*session, error) {
	log, err := logger.New(cfg.Log, ioErr)
	if err != nil {
		return nil, err
	}

	bc := bridge.FromConfig(cfg, loadSecrets(), providerFlag)
	bc.Logger = log

	modelName, err := selectModel(cfg, bc.Name)
	if err != nil {
		return nil, err
	}

	// Locally pulled Ollama models may be missing from the built-in catalog.
	if strings.EqualFold(bc.Name, "ollama") {
		base, _, _ := strings.Cut(modelName, "?")
		if bc.Catalog, err = ollama.WithLocalModels(ollama.Catalog(), base); err != nil {
			return nil, err
		}
	}

	p, err := newPlatform(bc)
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	return &session{platform: p, model: modelName, logger: log}, nil
}

// selectModel honors --model. Switching provider with --provider alone picks
// the first model of that provider's catalog.
func selectModel(cfg *config.Config, provider string) (string, error) {
	if modelFlag != "" {
		return modelFlag, nil
	}
	if provider == cfg.Provider {
		return cfg.Model, nil
	}
	cat, err := bridge.Catalog(provider)
	if err != nil {
		return "", err
	}
	models := cat.Models()
	if len(models) == 0 {
		return "", fmt.Errorf("no models known for %s; pass --model", provider)
	}
	return models[0].Name(), nil
}

func runPrompt(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	cfg, err := settings()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	bag, err := promptBag(strings.Join(args, " "))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), invokeTimeout)
	defer cancel()

	deferred, err := s.platform.Invoke(ctx, s.model, bag, platform.Options{Stream: streamFlag})
	if err != nil {
		return fmt.Errorf("invoking %s: %w", s.model, err)
	}

	if streamFlag {
		return printStream(deferred)
	}

	result, err := deferred.Result()
	if err != nil {
		return err
	}
	switch r := result.(type) {
	case *platform.TextResult:
		_, _ = fmt.Fprintf(ioOut, "\n%s\n\n", r.Text)
	case *platform.StructuredResult:
		_, _ = fmt.Fprintf(ioOut, "\n%s\n\n", r.JSON)
	default:
		return fmt.Errorf("%w: %T", platform.ErrUnexpectedResult, result)
	}
	printUsage(result.Metadata())
	return nil
}

func promptBag(text string) (message.Bag, error) {
	parts := []message.Content{message.Text{Text: text}}
	for _, path := range imageFlags {
		img, err := message.ImageFromPath(path)
		if err != nil {
			return message.Bag{}, fmt.Errorf("loading image: %w", err)
		}
		parts = append(parts, img)
	}

	var msgs []message.Message
	if systemFlag != "" {
		msgs = append(msgs, message.System(systemFlag))
	}
	msgs = append(msgs, message.User(parts...))
	return message.NewBag(msgs...), nil
}

// commandContext is nil when a RunE is called outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func printStream(deferred *platform.DeferredResult) error {
	stream, err := deferred.AsStream()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(ioOut)
	for d, err := range stream.Deltas() {
		if err != nil {
			_, _ = fmt.Fprintln(ioOut)
			return err
		}
		_, _ = fmt.Fprint(ioOut, d.Text)
	}
	_, _ = fmt.Fprint(ioOut, "\n\n")
	printUsage(stream.Metadata())
	return nil
}

func printUsage(meta *platform.Metadata) {
	if usage, ok := meta.TokenUsage(); ok && !usage.IsEmpty() {
		_, _ = fmt.Fprintf(ioOut, "  [%s]\n", usage)
	}
}
