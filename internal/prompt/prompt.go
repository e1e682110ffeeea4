// Package prompt builds the system prompt for interactive sessions and asks
// the user yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/hpkotak/aiplatform/internal/platform"
)

// Environment describes where the session runs. It is embedded in the system
// prompt so commands suggested by the model fit the user's machine.
type Environment struct {
	OS    string
	Arch  string
	Shell string
	CWD   string
}

// CurrentEnvironment is best-effort: unknown fields stay empty.
func CurrentEnvironment() Environment {
	env := Environment{OS: runtime.GOOS, Arch: runtime.GOARCH, Shell: os.Getenv("SHELL")}
	env.CWD, _ = os.Getwd()
	return env
}

func (e Environment) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OS: %s (%s)\n", e.OS, e.Arch)
	if e.Shell != "" {
		fmt.Fprintf(&b, "Shell: %s\n", e.Shell)
	}
	if e.CWD != "" {
		fmt.Fprintf(&b, "Working directory: %s\n", e.CWD)
	}
	return b.String()
}

// ChatSystemPrompt returns the system prompt for `aip chat`.
func ChatSystemPrompt(env Environment, tools []platform.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant running in the user's terminal.\n\n")
	b.WriteString("Current environment:\n")
	b.WriteString(env.Format())
	if len(tools) > 0 {
		b.WriteString("\nYou can call these tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		b.WriteString("Call a tool only when the answer depends on it. Destructive commands need the user's approval and may be refused.\n")
	}
	b.WriteString("\nBe concise. Don't over-explain unless asked.")
	return b.String()
}

// Confirm asks a yes/no question. defaultYes decides an empty answer; EOF
// and anything unrecognized count as no.
func Confirm(question string, defaultYes bool, in *bufio.Scanner, out io.Writer) bool {
	hint := "[Y/n]"
	if !defaultYes {
		hint = "[y/N]"
	}
	_, _ = fmt.Fprintf(out, "%s %s: ", question, hint)

	if !in.Scan() {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(in.Text())) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ReadLine reads one trimmed line; it returns "" at EOF.
func ReadLine(in *bufio.Scanner) string {
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}
