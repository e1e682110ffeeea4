package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hpkotak/aiplatform/internal/platform"
)

// Clock reports the current time, optionally in a named IANA zone.
type Clock struct {
	// Now is replaceable in tests.
	Now func() time.Time
}

func (Clock) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Name:        "clock",
		Description: "Returns the current date and time in RFC 3339 format.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA time zone such as Europe/Paris. Defaults to local time.",
				},
			},
		},
	}
}

func (c Clock) Execute(_ context.Context, args map[string]any) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	if tz, _ := args["timezone"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", tz)
		}
		t = t.In(loc)
	}
	return t.Format(time.RFC3339), nil
}
