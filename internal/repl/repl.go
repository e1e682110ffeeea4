// Package repl implements the interactive chat loop behind `aip chat`.
// The conversation lives in the chat's store, so a session can be resumed.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hpkotak/aiplatform/internal/agent"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/prompt"
)

const chatTimeout = 120 * time.Second

// Chatter is satisfied by *chat.Chat.
type Chatter interface {
	Initiate(ctx context.Context, bag message.Bag) error
	Submit(ctx context.Context, msg message.UserMessage) (*agent.Response, error)
	History(ctx context.Context) (message.Bag, error)
}

// Session owns the terminal. Tool approvals are asked through it so they
// share the input stream with the chat loop.
type Session struct {
	in  *bufio.Scanner
	out io.Writer
	mu  sync.Mutex
}

func New(in io.Reader, out io.Writer) *Session {
	return &Session{in: bufio.NewScanner(in), out: out}
}

// Approve asks the user whether a destructive command may run. Tool calls
// execute concurrently; questions are asked one at a time.
func (s *Session) Approve(command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.out, "\n  > %s\n", command)
	_, _ = fmt.Fprintln(s.out, "  Warning: destructive command")
	return prompt.Confirm("  Allow the assistant to run it?", false, s.in, s.out)
}

// Run reads messages until exit, quit or EOF. system seeds the conversation
// when the store is empty and on /reset.
func (s *Session) Run(ctx context.Context, c Chatter, system message.Bag) error {
	_, _ = fmt.Fprintln(s.out, "aip chat (type 'exit' to quit, '/reset' to start over)")
	_, _ = fmt.Fprintln(s.out)

	history, err := c.History(ctx)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if history.Len() == 0 {
		if err := c.Initiate(ctx, system); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(s.out, "Resuming conversation (%d messages)\n\n", history.Len())
	}

	for {
		_, _ = fmt.Fprint(s.out, "aip> ")

		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				_, _ = fmt.Fprintf(s.out, "\nInput error: %v\n", err)
				return err
			}
			_, _ = fmt.Fprintln(s.out)
			return nil // EOF (Ctrl+D)
		}

		input := strings.TrimSpace(s.in.Text())
		switch input {
		case "":
			continue
		case "exit", "quit":
			_, _ = fmt.Fprintln(s.out, "Bye!")
			return nil
		case "/reset":
			if err := c.Initiate(ctx, system); err != nil {
				_, _ = fmt.Fprintf(s.out, "Error: %v\n\n", err)
				continue
			}
			_, _ = fmt.Fprintln(s.out, "Conversation cleared.")
			_, _ = fmt.Fprintln(s.out)
			continue
		case "/history":
			s.printHistory(ctx, c)
			continue
		}

		resp, err := s.submit(ctx, c, input)
		if err != nil {
			_, _ = fmt.Fprintf(s.out, "Error: %v\n\n", err)
			continue
		}
		_, _ = fmt.Fprintf(s.out, "\n%s\n", resp.Text)
		if resp.Usage != nil {
			_, _ = fmt.Fprintf(s.out, "  [%s]\n", resp.Usage)
		}
		_, _ = fmt.Fprintln(s.out)
	}
}

func (s *Session) submit(ctx context.Context, c Chatter, input string) (*agent.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	return c.Submit(ctx, message.UserText(input))
}

func (s *Session) printHistory(ctx context.Context, c Chatter) {
	history, err := c.History(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(s.out, "Error: %v\n\n", err)
		return
	}
	for _, m := range history.Messages() {
		_, _ = fmt.Fprintf(s.out, "  %-9s %s\n", m.Role(), summarize(m))
	}
	_, _ = fmt.Fprintln(s.out)
}

func summarize(m message.Message) string {
	var text string
	switch msg := m.(type) {
	case message.SystemMessage:
		text = msg.Content
	case message.UserMessage:
		text = msg.Text()
	case message.AssistantMessage:
		text = msg.Content
	case message.ToolCallMessage:
		names := make([]string, len(msg.Calls))
		for i, call := range msg.Calls {
			names[i] = call.Name
		}
		text = "calls " + strings.Join(names, ", ")
	case message.ToolResultMessage:
		text = msg.Call.Name + ": " + msg.Content
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 72 {
		text = text[:69] + "..."
	}
	return text
}
