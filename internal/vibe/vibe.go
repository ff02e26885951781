// Package vibe defines the personality modes a conversation can run in.
package vibe

import (
	"fmt"
	"strings"
)

type Mode string

const (
	Chaotic  Mode = "chaotic"
	Soft     Mode = "soft"
	Unhinged Mode = "unhinged"
	Study    Mode = "study"
)

// Default is used when a request doesn't specify a mode.
const Default = Chaotic

var all = []Mode{Chaotic, Soft, Unhinged, Study}

// All returns every valid mode in a stable order.
func All() []Mode {
	out := make([]Mode, len(all))
	copy(out, all)
	return out
}

func (m Mode) Valid() bool {
	switch m {
	case Chaotic, Soft, Unhinged, Study:
		return true
	}
	return false
}

// Parse validates a raw mode string. Empty input falls back to Default.
func Parse(s string) (Mode, error) {
	if s == "" {
		return Default, nil
	}
	m := Mode(strings.ToLower(s))
	if !m.Valid() {
		return "", fmt.Errorf("invalid vibe %q", s)
	}
	return m, nil
}

// ChaosLevel maps a mode to its baseline intensity (0-100).
func (m Mode) ChaosLevel() int {
	switch m {
	case Unhinged:
		return 100
	case Chaotic:
		return 50
	case Study:
		return 30
	case Soft:
		return 20
	}
	return 50
}
