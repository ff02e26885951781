package personality

import (
	"strings"

	"github.com/chaobytes/chaogpt/internal/vibe"
)

type Tone string

const (
	ToneHyped     Tone = "hyped"
	ToneChill     Tone = "chill"
	ToneConcerned Tone = "concerned"
	ToneSassy     Tone = "sassy"
)

var (
	excitementMarkers = []string{"!!", "omg", "let's go", "lets go", "hype", "amazing", "incredible"}
	sassMarkers       = []string{"bestie", "periodt", "the tea", "audacity", "i said what i said"}
	cautionMarkers    = []string{"careful", "warning", "be safe", "worried", "concerning", "risky"}
)

var defaultTone = map[vibe.Mode]Tone{
	vibe.Chaotic:  ToneHyped,
	vibe.Unhinged: ToneHyped,
	vibe.Soft:     ToneChill,
	vibe.Study:    ToneChill,
}

// DetectTone derives the emotional tone of a full reply. Keyword heuristics,
// checked in priority order, falling back to the vibe's default.
func DetectTone(text string, v vibe.Mode) Tone {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, excitementMarkers):
		return ToneHyped
	case containsAny(lower, sassMarkers):
		return ToneSassy
	case containsAny(lower, cautionMarkers):
		return ToneConcerned
	}
	if t, ok := defaultTone[v]; ok {
		return t
	}
	return ToneChill
}
