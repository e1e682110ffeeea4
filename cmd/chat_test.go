package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/store"
)

// useMemoryStore makes every openStore call return the same memory store.
func useMemoryStore(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	openStore = func(config.Store) (store.Store, error) { return mem, nil }
	return mem
}

func TestRunChat(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		model     string
		noTools   bool
		replies   []string
		wantOut   []string
		wantTools bool
		wantCalls int
		wantSaved int
	}{
		{
			name:      "text reply",
			input:     "hello\nexit\n",
			replies:   []string{`{"message":{"role":"assistant","content":"hi there"},"done":true,"prompt_eval_count":20,"eval_count":2}`},
			wantOut:   []string{"hi there", "[prompt=20 completion=2]", "Bye!"},
			wantTools: true,
			wantCalls: 1,
			wantSaved: 3,
		},
		{
			name:  "tool round trip",
			input: "what time is it in UTC?\nexit\n",
			replies: []string{
				`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"clock","arguments":{"timezone":"UTC"}}}]},"done":true,"prompt_eval_count":30,"eval_count":5}`,
				`{"message":{"role":"assistant","content":"It is noon."},"done":true,"prompt_eval_count":40,"eval_count":4}`,
			},
			wantOut:   []string{"It is noon.", "[prompt=70 completion=9]"},
			wantTools: true,
			wantCalls: 2,
			wantSaved: 5,
		},
		{
			name:      "no tools flag",
			input:     "hello\nexit\n",
			noTools:   true,
			replies:   []string{`{"message":{"role":"assistant","content":"hi"},"done":true}`},
			wantOut:   []string{"hi"},
			wantCalls: 1,
			wantSaved: 3,
		},
		{
			name:      "model without tool calling",
			input:     "hello\nexit\n",
			model:     "deepseek-r1",
			replies:   []string{`{"message":{"role":"assistant","content":"hmm"},"done":true}`},
			wantOut:   []string{"hmm"},
			wantCalls: 1,
			wantSaved: 3,
		},
		{
			name:      "upstream failure keeps history",
			input:     "hello\nexit\n",
			wantOut:   []string{"Error:", "Bye!"},
			wantTools: true,
			wantCalls: 1,
			wantSaved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := saveCmdVars(t)
			defer restore()

			fake, _, out := useFakeOllama(t, tt.replies...)
			mem := useMemoryStore(t)
			ioIn = strings.NewReader(tt.input)
			noTools = tt.noTools
			modelFlag = tt.model

			if err := runChat(chatCmd, nil); err != nil {
				t.Fatalf("runChat() error: %v", err)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output = %q, want substring %q", out.String(), want)
				}
			}
			if len(fake.requests) != tt.wantCalls {
				t.Fatalf("upstream requests = %d, want %d", len(fake.requests), tt.wantCalls)
			}
			_, hasTools := fake.requests[0]["tools"]
			if hasTools != tt.wantTools {
				t.Errorf("tools sent = %v, want %v", hasTools, tt.wantTools)
			}

			saved, err := mem.Load(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if saved.Len() != tt.wantSaved {
				t.Errorf("saved messages = %d, want %d", saved.Len(), tt.wantSaved)
			}
			if sys, ok := saved.System(); !ok || !strings.Contains(sys.Content, "Current environment") {
				t.Errorf("system prompt not stored: %+v", sys)
			}
		})
	}
}

func TestRunChatResumeAndReset(t *testing.T) {
	restore := saveCmdVars(t)
	defer restore()

	_, _, out := useFakeOllama(t)
	mem := useMemoryStore(t)
	_ = mem.Save(context.Background(), message.NewBag(message.System("old"), message.UserText("earlier"), message.Assistant("reply")))

	ioIn = strings.NewReader("exit\n")
	if err := runChat(chatCmd, nil); err != nil {
		t.Fatalf("runChat() error: %v", err)
	}
	if !strings.Contains(out.String(), "Resuming conversation (3 messages)") {
		t.Errorf("output = %q", out.String())
	}

	ioIn = strings.NewReader("exit\n")
	resetFlag = true
	if err := runChat(chatCmd, nil); err != nil {
		t.Fatalf("runChat() error: %v", err)
	}
	saved, _ := mem.Load(context.Background())
	if saved.Len() != 1 {
		t.Errorf("after --reset saved = %d messages, want only the system prompt", saved.Len())
	}
}

func TestRunChatStoreErrors(t *testing.T) {
	restore := saveCmdVars(t)
	defer restore()

	useFakeOllama(t)
	storeFlag = "postgres"
	if err := runChat(chatCmd, nil); err == nil || !strings.Contains(err.Error(), "unsupported store driver") {
		t.Errorf("error = %v, want unsupported store driver", err)
	}

	storeFlag = ""
	openStore = func(config.Store) (store.Store, error) { return nil, errors.New("redis unreachable") }
	if err := runChat(chatCmd, nil); err == nil || !strings.Contains(err.Error(), "redis unreachable") {
		t.Errorf("error = %v", err)
	}
}

func TestRunChatSQLiteStore(t *testing.T) {
	restore := saveCmdVars(t)
	defer restore()

	_, cfg, _ := useFakeOllama(t, `{"message":{"role":"assistant","content":"stored"},"done":true}`)
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = t.TempDir() + "/history.db"
	ioIn = strings.NewReader("hello\nexit\n")

	if err := runChat(chatCmd, nil); err != nil {
		t.Fatalf("runChat() error: %v", err)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close(st) }()
	saved, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if saved.Len() != 3 {
		t.Errorf("sqlite saved = %d messages, want 3", saved.Len())
	}
}
