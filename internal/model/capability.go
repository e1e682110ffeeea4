package model

import (
	"fmt"
	"strings"
)

// Capability is a declared ability of a model.
type Capability string

const (
	InputMessages    Capability = "input-messages"
	InputText        Capability = "input-text"
	InputImage       Capability = "input-image"
	InputAudio       Capability = "input-audio"
	InputVideo       Capability = "input-video"
	OutputText       Capability = "output-text"
	OutputStreaming  Capability = "output-streaming"
	OutputStructured Capability = "output-structured"
	ToolCalling      Capability = "tool-calling"
)

var allCapabilities = []Capability{
	InputMessages,
	InputText,
	InputImage,
	InputAudio,
	InputVideo,
	OutputText,
	OutputStreaming,
	OutputStructured,
	ToolCalling,
}

// AllCapabilities returns the closed set of known capabilities.
func AllCapabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// Valid reports whether c belongs to the closed capability set.
func (c Capability) Valid() bool {
	for _, known := range allCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCapability converts a config string into a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

func (c Capability) String() string { return string(c) }
