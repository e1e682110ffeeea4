package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hpkotak/aiplatform/internal/platform"
)

const (
	// MaxOutputBytes is the captured output size before truncation.
	MaxOutputBytes = 8192

	defaultCommandTimeout = 30 * time.Second
)

// ErrCommandRefused is returned when a destructive command is not approved.
var ErrCommandRefused = errors.New("command refused")

// Command runs shell commands for the model. Commands matching a destructive
// pattern only run when Approve returns true; with no Approve they never run.
type Command struct {
	// Approve is asked before a destructive command runs.
	Approve func(command string) bool
	// Timeout bounds each command. Zero means 30s.
	Timeout time.Duration
	// Dir is the working directory; empty uses the process's.
	Dir string
}

func (Command) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Name:        "run_command",
		Description: "Runs a shell command and returns its combined output and exit code.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "The shell command line."},
			},
			"required": []string{"command"},
		},
	}
}

// Execute runs the command. Non-zero exit codes are reported in the output,
// not as errors.
func (c Command) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("command is required")
	}
	if IsDestructive(command) && (c.Approve == nil || !c.Approve(command)) {
		return "", fmt.Errorf("%w: %q looks destructive", ErrCommandRefused, command)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell(), "-c", command)
	cmd.Dir = c.Dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("executing command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	out := buf.String()
	if len(out) > MaxOutputBytes {
		out = out[:MaxOutputBytes] + "\n[output truncated]"
	}
	return fmt.Sprintf("exit code: %d\n%s", exitCode, out), nil
}

// shell returns $SHELL, defaulting to /bin/sh.
func shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

// guardRule flags commands matching pattern unless they also match allow.
type guardRule struct {
	pattern string
	allow   string
}

var destructivePatterns = []guardRule{
	{pattern: `\brm(\s|$)`},
	{pattern: `\bsudo\s`},
	{pattern: `\bdd\s+if=`},
	{pattern: `\bmkfs\b`},
	{pattern: `\bfdisk\b`},
	{pattern: `>+\s*/dev/`, allow: `>+\s*/dev/(null|stdout|stderr)(\s|;|&|$)`},
	{pattern: `\bchmod\s+000\b`},
	{pattern: `\bkill\s+-9\b`},
	{pattern: `\bkillall\s`},
	{pattern: `\b(shutdown|reboot)\b`},
	{pattern: `\bsystemctl\s+(stop|disable|mask)\b`},
	{pattern: `\bmv\s+/`},
	{pattern: `\bchown\s+-R\b`},
	{pattern: `:\s*>\s*\S`},
	{pattern: `\b(truncate|shred)\b`},
	{pattern: `\bgit\s+(push\s+.*--force|reset\s+--hard|clean\s+-\w*f)`},
}

type compiledRule struct {
	pattern *regexp.Regexp
	allow   *regexp.Regexp
}

var compileGuard = sync.OnceValue(func() []compiledRule {
	rules := make([]compiledRule, len(destructivePatterns))
	for i, r := range destructivePatterns {
		rules[i].pattern = regexp.MustCompile(r.pattern)
		if r.allow != "" {
			rules[i].allow = regexp.MustCompile(r.allow)
		}
	}
	return rules
})

// IsDestructive reports whether command matches a destructive pattern.
// Classification is deterministic and never consults a model.
func IsDestructive(command string) bool {
	for _, r := range compileGuard() {
		if !r.pattern.MatchString(command) {
			continue
		}
		if r.allow != nil && r.allow.MatchString(command) {
			continue
		}
		return true
	}
	return false
}
