package setup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/hpkotak/aiplatform/internal/config"
)

// saveFuncVars saves the current package-level function vars and returns
// a restore function. Call restore in a defer.
func saveFuncVars(t *testing.T) func() {
	t.Helper()
	origLookPath := lookPath
	origExecCommand := execCommand
	origPlatformOS := platformOS
	origLoadConfig := loadConfig
	origSaveConfig := saveConfig
	origLoadSecrets := loadSecrets
	return func() {
		lookPath = origLookPath
		execCommand = origExecCommand
		platformOS = origPlatformOS
		loadConfig = origLoadConfig
		saveConfig = origSaveConfig
		loadSecrets = origLoadSecrets
	}
}

func scanner(s string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(s))
}

// mockOllamaServer answers /api/tags with models, /api/pull with a finished
// pull and anything else with 200.
func mockOllamaServer(models []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/api/tags"):
			resp := api.ListResponse{}
			for _, m := range models {
				resp.Models = append(resp.Models, api.ListModelResponse{Name: m})
			}
			_ = json.NewEncoder(w).Encode(resp)
		case strings.HasSuffix(r.URL.Path, "/api/pull"):
			resp := api.ProgressResponse{Status: "success", Total: 100, Completed: 100}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		models    []string
		secrets   config.Secrets
		wantErr   string
		wantCfg   [2]string // provider, model
		wantInOut string
	}{
		{
			name:    "ollama default with local model",
			input:   "\n\n",
			models:  []string{"qwen2.5:7b"},
			wantCfg: [2]string{"ollama", "qwen2.5:7b"},
		},
		{
			name:      "anthropic without key still saves",
			input:     "3\n1\n",
			wantCfg:   [2]string{"anthropic", ""},
			wantInOut: "ANTHROPIC_API_KEY is not set",
		},
		{
			name:      "openai with key",
			input:     "2\n\n",
			secrets:   config.Secrets{OpenAIAPIKey: "sk-test"},
			wantCfg:   [2]string{"openai", ""},
			wantInOut: "[ok] OPENAI_API_KEY is set",
		},
		{
			name:    "bad provider",
			input:   "9\n",
			wantErr: "invalid selection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := saveFuncVars(t)
			defer restore()

			srv := mockOllamaServer(tt.models)
			defer srv.Close()

			lookPath = func(string) (string, error) { return "/usr/local/bin/ollama", nil }
			loadConfig = func() (*config.Config, error) {
				cfg := config.Default()
				cfg.Ollama.Host = srv.URL
				return cfg, nil
			}
			loadSecrets = func() config.Secrets { return tt.secrets }
			var saved *config.Config
			saveConfig = func(cfg *config.Config) error {
				saved = cfg
				return nil
			}

			out := &bytes.Buffer{}
			err := Run(strings.NewReader(tt.input), out)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Run() error = %v, want substring %q", err, tt.wantErr)
				}
				if saved != nil {
					t.Error("config must not be saved on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Run() unexpected error: %v", err)
			}
			if saved == nil {
				t.Fatal("config was not saved")
			}
			if saved.Provider != tt.wantCfg[0] {
				t.Errorf("provider = %q, want %q", saved.Provider, tt.wantCfg[0])
			}
			if tt.wantCfg[1] != "" && saved.Model != tt.wantCfg[1] {
				t.Errorf("model = %q, want %q", saved.Model, tt.wantCfg[1])
			}
			if saved.Model == "" {
				t.Error("model must be set")
			}
			if tt.wantInOut != "" && !strings.Contains(out.String(), tt.wantInOut) {
				t.Errorf("output = %q, want substring %q", out.String(), tt.wantInOut)
			}
		})
	}
}

func TestChoose(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"1", 0, false},
		{"4", 3, false},
		{"5", 0, true},
		{"0", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := choose(tt.input, 2, 4)
		if (err != nil) != tt.wantErr {
			t.Errorf("choose(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("choose(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestIsOllamaReachable(t *testing.T) {
	t.Run("server returns 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		if !isOllamaReachable(srv.URL) {
			t.Error("isOllamaReachable() = false, want true")
		}
	})

	t.Run("server returns 500", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		if isOllamaReachable(srv.URL) {
			t.Error("isOllamaReachable() = true, want false")
		}
	})

	t.Run("server closed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		if isOllamaReachable(srv.URL) {
			t.Error("isOllamaReachable() = true for closed server, want false")
		}
	})
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		name    string
		models  []string
		input   string
		want    string
		wantErr string
	}{
		{"select first model", []string{"llama3.2:latest", "gemma3:4b"}, "1\n", "llama3.2:latest", ""},
		{"select second model", []string{"llama3.2:latest", "gemma3:4b"}, "2\n", "gemma3:4b", ""},
		{"enter selects default", []string{"llama3.2:latest", "gemma3:4b"}, "\n", "llama3.2:latest", ""},
		{"invalid number", []string{"llama3.2:latest"}, "5\n", "", "invalid selection"},
		{"non-numeric input", []string{"llama3.2:latest"}, "abc\n", "", "invalid selection"},
		{"empty list pulls", nil, "\n", "llama3.2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockOllamaServer(tt.models)
			defer srv.Close()

			client, err := ollamaClient(srv.URL)
			if err != nil {
				t.Fatalf("ollamaClient: %v", err)
			}

			got, err := selectModel(client, scanner(tt.input), &bytes.Buffer{})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("selectModel() error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectModel() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("selectModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPullRecommendedModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{"select llama3.2", "1\n", "llama3.2", ""},
		{"default selects llama3.2", "\n", "llama3.2", ""},
		{"select gemma3", "2\n", "gemma3", ""},
		{"skip", "3\n", "", "no model selected"},
		{"invalid input", "xyz\n", "", "invalid selection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockOllamaServer(nil)
			defer srv.Close()

			client, err := ollamaClient(srv.URL)
			if err != nil {
				t.Fatalf("ollamaClient: %v", err)
			}

			out := &bytes.Buffer{}
			got, err := pullRecommendedModel(client, scanner(tt.input), out)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("pullRecommendedModel() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "100% downloaded") {
				t.Errorf("output = %q, want progress", out.String())
			}
		})
	}
}

func TestEnsureOllamaInstalled(t *testing.T) {
	tests := []struct {
		name      string
		found     bool
		os        string
		input     string
		wantErr   string
		wantInOut string
	}{
		{name: "already installed", found: true, os: "darwin", wantInOut: "[ok] Ollama is installed"},
		{name: "not installed, unsupported OS", os: "windows", wantErr: "unsupported platform"},
		{name: "not installed, darwin, user declines", os: "darwin", input: "n\n", wantErr: "ollama is required"},
		{name: "not installed, linux, install succeeds", os: "linux", input: "y\n", wantInOut: "[ok] Ollama installed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := saveFuncVars(t)
			defer restore()

			if tt.found {
				lookPath = func(string) (string, error) { return "/usr/local/bin/ollama", nil }
			} else {
				lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
			}
			platformOS = func() string { return tt.os }
			execCommand = func(string, ...string) *exec.Cmd { return exec.Command("true") }

			out := &bytes.Buffer{}
			err := ensureOllamaInstalled(scanner(tt.input), out)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantInOut) {
				t.Errorf("output = %q, want substring %q", out.String(), tt.wantInOut)
			}
		})
	}
}

func TestEnsureOllamaRunning(t *testing.T) {
	t.Run("already reachable", func(t *testing.T) {
		srv := mockOllamaServer(nil)
		defer srv.Close()

		out := &bytes.Buffer{}
		if err := ensureOllamaRunning(srv.URL, scanner(""), out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "[ok] Ollama is running") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("not reachable, user declines", func(t *testing.T) {
		srv := mockOllamaServer(nil)
		srv.Close()

		err := ensureOllamaRunning(srv.URL, scanner("n\n"), &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "ollama must be running") {
			t.Fatalf("error = %v, want ollama must be running", err)
		}
	})

	t.Run("never comes up", func(t *testing.T) {
		restore := saveFuncVars(t)
		defer restore()
		origWait := startWait
		startWait = 0
		defer func() { startWait = origWait }()
		execCommand = func(string, ...string) *exec.Cmd { return exec.Command("true") }

		srv := mockOllamaServer(nil)
		srv.Close()

		err := ensureOllamaRunning(srv.URL, scanner("y\n"), &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "did not start") {
			t.Fatalf("error = %v, want did not start", err)
		}
	})
}
