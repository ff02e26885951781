package personality

import (
	"time"

	"github.com/chaobytes/chaogpt/internal/vibe"
)

// Pacing describes the simulated typing cadence for a vibe. The per-token
// delay is a design feature, not an artifact: it is what makes the stream read
// like a person typing.
type Pacing struct {
	MinDelay        time.Duration
	MaxDelay        time.Duration
	ThinkingDelay   time.Duration
	ReactionChance  float64
}

var pacingByVibe = map[vibe.Mode]Pacing{
	vibe.Unhinged: {MinDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, ThinkingDelay: 200 * time.Millisecond, ReactionChance: 0.25},
	vibe.Chaotic:  {MinDelay: 20 * time.Millisecond, MaxDelay: 80 * time.Millisecond, ThinkingDelay: 350 * time.Millisecond, ReactionChance: 0.15},
	vibe.Study:    {MinDelay: 30 * time.Millisecond, MaxDelay: 90 * time.Millisecond, ThinkingDelay: 500 * time.Millisecond, ReactionChance: 0.08},
	vibe.Soft:     {MinDelay: 40 * time.Millisecond, MaxDelay: 120 * time.Millisecond, ThinkingDelay: 450 * time.Millisecond, ReactionChance: 0.08},
}

// PacingFor returns the cadence parameters for a vibe.
func PacingFor(v vibe.Mode) Pacing {
	if p, ok := pacingByVibe[v]; ok {
		return p
	}
	return pacingByVibe[vibe.Chaotic]
}

// TokenDelay draws one per-token delay from the vibe's range.
func (p Pacing) TokenDelay(s *Sampler) time.Duration {
	return s.Between(p.MinDelay, p.MaxDelay)
}
