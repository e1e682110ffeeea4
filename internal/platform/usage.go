package platform

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// TokenUsage is accounting metadata about a call. Every counter is optional:
// nil means the provider did not report it, zero is an observed count.
type TokenUsage struct {
	PromptTokens          *int `json:"prompt_tokens,omitempty"`
	CompletionTokens      *int `json:"completion_tokens,omitempty"`
	ToolTokens            *int `json:"tool_tokens,omitempty"`
	ThinkingTokens        *int `json:"thinking_tokens,omitempty"`
	CachedTokens          *int `json:"cached_tokens,omitempty"`
	TotalTokens           *int `json:"total_tokens,omitempty"`
	RemainingTokensMinute *int `json:"remaining_tokens_minute,omitempty"`
	RemainingTokensMonth  *int `json:"remaining_tokens_month,omitempty"`
}

// IsEmpty reports whether no counter was reported.
func (u TokenUsage) IsEmpty() bool {
	for _, c := range u.counters() {
		if *c != nil {
			return false
		}
	}
	return true
}

func (u *TokenUsage) counters() []**int {
	return []**int{
		&u.PromptTokens, &u.CompletionTokens, &u.ToolTokens, &u.ThinkingTokens,
		&u.CachedTokens, &u.TotalTokens, &u.RemainingTokensMinute, &u.RemainingTokensMonth,
	}
}

func (u TokenUsage) String() string {
	var parts []string
	add := func(name string, v *int) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", name, *v))
		}
	}
	add("prompt", u.PromptTokens)
	add("completion", u.CompletionTokens)
	add("tool", u.ToolTokens)
	add("thinking", u.ThinkingTokens)
	add("cached", u.CachedTokens)
	add("total", u.TotalTokens)
	add("remaining_minute", u.RemainingTokensMinute)
	add("remaining_month", u.RemainingTokensMonth)
	if len(parts) == 0 {
		return "no usage reported"
	}
	return strings.Join(parts, " ")
}

// TokenUsageExtractor parses usage out of a raw result. Missing or malformed
// usage yields nil; the error return is reserved for raw accessor failures.
type TokenUsageExtractor interface {
	Extract(raw RawResult, opts Options) (*TokenUsage, error)
}

// Count returns a pointer to n.
func Count(n int) *int { return &n }

// UsageCount converts a gjson value to a counter; absent or non-numeric
// values yield nil.
func UsageCount(r gjson.Result) *int {
	if !r.Exists() || r.Type != gjson.Number {
		return nil
	}
	return Count(int(r.Int()))
}

// HeaderCount parses an integer header; missing or non-numeric yields nil.
func HeaderCount(h http.Header, key string) *int {
	if h == nil {
		return nil
	}
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// SumCounts adds two optional counters; nil when both are nil.
func SumCounts(a, b *int) *int {
	if a == nil && b == nil {
		return nil
	}
	total := 0
	if a != nil {
		total += *a
	}
	if b != nil {
		total += *b
	}
	return &total
}

// ScanTerminal ranges over the chunks of raw and stops at the first chunk
// isTerminal accepts. The sequence is consumed; found is false when the
// stream ended without a terminal chunk. Stream errors are returned unchanged.
func ScanTerminal(raw RawResult, isTerminal func(Chunk) bool) (Chunk, bool, error) {
	for c, err := range raw.Chunks() {
		if err != nil {
			return Chunk{}, false, err
		}
		if isTerminal(c) {
			return c, true, nil
		}
	}
	return Chunk{}, false, nil
}

// Aggregate sums usage across calls. Remaining-quota counters keep the
// lowest reported value. Nil entries are skipped; nil when all are nil.
func Aggregate(usages ...*TokenUsage) *TokenUsage {
	var out *TokenUsage
	for _, u := range usages {
		if u == nil {
			continue
		}
		if out == nil {
			out = &TokenUsage{}
		}
		out.PromptTokens = SumCounts(out.PromptTokens, u.PromptTokens)
		out.CompletionTokens = SumCounts(out.CompletionTokens, u.CompletionTokens)
		out.ToolTokens = SumCounts(out.ToolTokens, u.ToolTokens)
		out.ThinkingTokens = SumCounts(out.ThinkingTokens, u.ThinkingTokens)
		out.CachedTokens = SumCounts(out.CachedTokens, u.CachedTokens)
		out.TotalTokens = SumCounts(out.TotalTokens, u.TotalTokens)
		out.RemainingTokensMinute = minCount(out.RemainingTokensMinute, u.RemainingTokensMinute)
		out.RemainingTokensMonth = minCount(out.RemainingTokensMonth, u.RemainingTokensMonth)
	}
	return out
}

func minCount(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}
