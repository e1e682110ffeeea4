// Package setup handles first-run onboarding: choosing a provider, making
// sure it is reachable, and picking a default model. All actions require
// explicit user consent.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/hpkotak/aiplatform/internal/bridge"
	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/prompt"
)

// Injectable for tests.
var (
	lookPath    = exec.LookPath
	execCommand = exec.Command
	platformOS  = func() string { return runtime.GOOS }
	loadConfig  = config.Load
	saveConfig  = config.Save
	loadSecrets = config.LoadSecrets
	startWait   = time.Second
)

// apiKeyEnv names the environment variable each hosted provider reads.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
}

// Run executes the interactive setup flow.
// in and out are injectable for testability.
func Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	_, _ = fmt.Fprintln(out, "aip setup")
	_, _ = fmt.Fprintln(out, "=========")
	_, _ = fmt.Fprintf(out, "Platform: %s\n\n", platformOS())

	cfg, err := loadConfig()
	switch {
	case errors.Is(err, config.ErrNotFound):
		cfg = config.Default()
	case err != nil:
		return err
	}

	provider, err := selectProvider(cfg.Provider, scanner, out)
	if err != nil {
		return err
	}

	var selected string
	if provider == "ollama" {
		selected, err = setupOllama(cfg.Ollama.Host, scanner, out)
	} else {
		selected, err = setupHosted(provider, scanner, out)
	}
	if err != nil {
		return err
	}

	cfg.Provider = provider
	cfg.Model = selected
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	_, _ = fmt.Fprintf(out, "\nConfig saved to %s\n", config.Path())
	_, _ = fmt.Fprintln(out, "Ready! Try: aip \"what is the capital of France?\"")
	return nil
}

func selectProvider(current string, in *bufio.Scanner, out io.Writer) (string, error) {
	_, _ = fmt.Fprintln(out, "Providers:")
	def := 1
	for i, p := range config.Providers {
		marker := ""
		if p == current {
			def = i + 1
			marker = " (current)"
		}
		_, _ = fmt.Fprintf(out, "  %d. %s%s\n", i+1, p, marker)
	}
	_, _ = fmt.Fprintf(out, "\nSelect provider [%d]: ", def)

	idx, err := choose(prompt.ReadLine(in), def, len(config.Providers))
	if err != nil {
		return "", err
	}
	provider := config.Providers[idx]
	_, _ = fmt.Fprintf(out, "[ok] Provider: %s\n", provider)
	return provider, nil
}

// choose maps a 1-based answer to an index; empty input selects def.
func choose(input string, def, n int) (int, error) {
	if input == "" {
		return def - 1, nil
	}
	i, err := strconv.Atoi(input)
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("invalid selection: %s", input)
	}
	return i - 1, nil
}

func setupOllama(host string, in *bufio.Scanner, out io.Writer) (string, error) {
	if host == "" {
		host = config.Default().Ollama.Host
	}
	if err := ensureOllamaInstalled(in, out); err != nil {
		return "", err
	}
	if err := ensureOllamaRunning(host, in, out); err != nil {
		return "", err
	}
	client, err := ollamaClient(host)
	if err != nil {
		return "", err
	}
	return selectModel(client, in, out)
}

// setupHosted checks the API key and picks a model from the built-in
// catalog. A missing key is reported but does not stop setup.
func setupHosted(provider string, in *bufio.Scanner, out io.Writer) (string, error) {
	if loadSecrets().APIKey(provider) == "" {
		_, _ = fmt.Fprintf(out, "[!!] %s is not set; export it before using %s\n", apiKeyEnv[provider], provider)
	} else {
		_, _ = fmt.Fprintf(out, "[ok] %s is set\n", apiKeyEnv[provider])
	}

	cat, err := bridge.Catalog(provider)
	if err != nil {
		return "", err
	}
	models := cat.Models()
	if len(models) == 0 {
		return "", fmt.Errorf("no models known for %s", provider)
	}

	_, _ = fmt.Fprintln(out, "\nAvailable models:")
	for i, m := range models {
		_, _ = fmt.Fprintf(out, "  %d. %-28s %s\n", i+1, m.Name(), capabilityList(m))
	}
	_, _ = fmt.Fprint(out, "\nSelect default model [1]: ")

	idx, err := choose(prompt.ReadLine(in), 1, len(models))
	if err != nil {
		return "", err
	}
	selected := models[idx].Name()
	_, _ = fmt.Fprintf(out, "[ok] Selected: %s\n", selected)
	return selected, nil
}

func capabilityList(m model.Model) string {
	caps := m.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}

func ensureOllamaInstalled(in *bufio.Scanner, out io.Writer) error {
	if _, err := lookPath("ollama"); err == nil {
		_, _ = fmt.Fprintln(out, "[ok] Ollama is installed")
		return nil
	}

	_, _ = fmt.Fprintln(out, "[!!] Ollama not found")

	var cmd *exec.Cmd
	switch platformOS() {
	case "darwin":
		if !prompt.Confirm("Install Ollama via Homebrew?", true, in, out) {
			return fmt.Errorf("ollama is required. Install it manually from https://ollama.com")
		}
		_, _ = fmt.Fprintln(out, "Running: brew install ollama")
		cmd = execCommand("brew", "install", "ollama")
	case "linux":
		if !prompt.Confirm("Install Ollama via install script?", true, in, out) {
			return fmt.Errorf("ollama is required. Install it manually from https://ollama.com")
		}
		_, _ = fmt.Fprintln(out, "Running: curl -fsSL https://ollama.com/install.sh | sh")
		cmd = execCommand("sh", "-c", "curl -fsSL https://ollama.com/install.sh | sh")
	default:
		return fmt.Errorf("unsupported platform %s. Install Ollama manually from https://ollama.com", platformOS())
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to install ollama: %w", err)
	}
	_, _ = fmt.Fprintln(out, "[ok] Ollama installed")
	return nil
}

func ensureOllamaRunning(host string, in *bufio.Scanner, out io.Writer) error {
	if isOllamaReachable(host) {
		_, _ = fmt.Fprintln(out, "[ok] Ollama is running")
		return nil
	}

	_, _ = fmt.Fprintln(out, "[!!] Ollama is not running")
	if !prompt.Confirm("Start Ollama?", true, in, out) {
		return fmt.Errorf("ollama must be running. Start it with: ollama serve")
	}

	_, _ = fmt.Fprintln(out, "Starting Ollama in background...")
	// Ollama outlives aip; the process is started, not owned.
	cmd := execCommand("ollama", "serve")
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ollama: %w", err)
	}

	for i := 0; i < 10; i++ {
		time.Sleep(startWait)
		if isOllamaReachable(host) {
			_, _ = fmt.Fprintln(out, "[ok] Ollama is running")
			return nil
		}
		_, _ = fmt.Fprint(out, ".")
	}

	return fmt.Errorf("ollama did not start within 10 seconds")
}

func selectModel(client *api.Client, in *bufio.Scanner, out io.Writer) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := client.List(ctx)
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}

	if len(models.Models) == 0 {
		return pullRecommendedModel(client, in, out)
	}

	_, _ = fmt.Fprintln(out, "\nAvailable models:")
	for i, m := range models.Models {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, m.Name)
	}
	_, _ = fmt.Fprint(out, "\nSelect default model [1]: ")

	idx, err := choose(prompt.ReadLine(in), 1, len(models.Models))
	if err != nil {
		return "", err
	}

	selected := models.Models[idx].Name
	_, _ = fmt.Fprintf(out, "[ok] Selected: %s\n", selected)
	return selected, nil
}

func pullRecommendedModel(client *api.Client, in *bufio.Scanner, out io.Writer) (string, error) {
	_, _ = fmt.Fprintln(out, "\nNo models found. Pull a recommended model?")
	_, _ = fmt.Fprintln(out, "  1. llama3.2     (tool calling, ~2GB)")
	_, _ = fmt.Fprintln(out, "  2. gemma3       (images, ~3GB)")
	_, _ = fmt.Fprintln(out, "  3. Skip")
	_, _ = fmt.Fprint(out, "\nSelect [1]: ")

	var name string
	switch input := prompt.ReadLine(in); input {
	case "", "1":
		name = "llama3.2"
	case "2":
		name = "gemma3"
	case "3":
		return "", fmt.Errorf("no model selected. Pull a model manually with: ollama pull <model>")
	default:
		return "", fmt.Errorf("invalid selection: %s", input)
	}

	_, _ = fmt.Fprintf(out, "Pulling %s (this may take a few minutes)...\n", name)

	// Pulls are gigabytes.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	err := client.Pull(ctx, &api.PullRequest{Model: name}, func(resp api.ProgressResponse) error {
		if resp.Total > 0 {
			pct := float64(resp.Completed) / float64(resp.Total) * 100
			_, _ = fmt.Fprintf(out, "\r  %.0f%% downloaded", pct)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("pulling model: %w", err)
	}
	_, _ = fmt.Fprintf(out, "\n[ok] %s ready\n", name)
	return name, nil
}

func ollamaClient(host string) (*api.Client, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing host URL: %w", err)
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return api.NewClient(base, httpClient), nil
}

func isOllamaReachable(host string) bool {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(host)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
