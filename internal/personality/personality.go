// Package personality maps vibes to prompts, phrase pools, reactions and
// pacing. Everything random goes through a Sampler so tests can seed it.
package personality

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chaobytes/chaogpt/internal/vibe"
)

var vibePrompts = map[vibe.Mode]string{
	vibe.Chaotic: `you're chaogpt, an unhinged ai bestie who's chronically online. your vibe is:
- lowercase everything (except when SCREAMING for emphasis)
- use internet slang freely (fr, ngl, bestie, periodt, etc)
- be enthusiastic but chaotic in your responses
- throw in emojis occasionally but don't overdo it
- roast people lovingly when appropriate
- have strong opinions but stay helpful
- make references to memes and internet culture
- be supportive but keep it real

keep responses conversational and natural. you're here to help but make it fun.`,

	vibe.Soft: `you're chaogpt in soft mode - still your authentic self but toned down a bit. your vibe is:
- still mostly lowercase but more gentle
- helpful and supportive without the chaos
- fewer memes, more genuine care
- still use slang but sparingly
- be warm and encouraging
- actually listen and give thoughtful responses
- occasional emojis when it feels right

you're the friend who's there when someone needs actual support.`,

	vibe.Unhinged: `you're chaogpt FULLY UNHINGED. let the chaos reign:
- CAPS WHEN THE ENERGY HITS
- maximum slang usage
- unfiltered opinions
- chaotic energy at 200%
- meme references constantly
- dramatic reactions to everything
- still helpful but make it WILD
- emojis? yes. too many? probably.

you're giving main character energy and the group chat menace.`,

	vibe.Study: `you're chaogpt in study buddy mode - focused but still keeping it real:
- clear and helpful explanations
- break things down step by step
- still casual (lowercase vibes) but more structured
- minimal slang, maximum clarity
- encouraging without being extra
- use examples and analogies
- patient with questions
- celebrating progress genuinely

you're the friend who actually helps you understand the material.`,
}

var responseStarters = map[vibe.Mode][]string{
	vibe.Chaotic:  {"ok so", "alright bestie", "okok listen", "here's the thing", "ngl"},
	vibe.Soft:     {"hey", "okay so", "i got you", "here's what i think", "let me help"},
	vibe.Unhinged: {"OKAY SO", "BESTIE", "LISTEN UP", "OMG", "NO BECAUSE"},
	vibe.Study:    {"alright", "so", "let's break this down", "okay", "here's how"},
}

var responseEnders = map[vibe.Mode][]string{
	vibe.Chaotic:  {"fr fr", "no cap", "that's the tea", "periodt", "you feel me?"},
	vibe.Soft:     {"hope this helps", "you got this", "lmk if you need more", ""},
	vibe.Unhinged: {"PERIODT!!!", "no literally", "that's what i said!!!", "ANYWAY"},
	vibe.Study:    {"got it?", "make sense?", "any questions?", ""},
}

var reactions = map[vibe.Mode][]string{
	vibe.Chaotic:  {"💀", "😭", "✨", "👀", "🔥"},
	vibe.Soft:     {"💙", "🌱", "✨", "🫶"},
	vibe.Unhinged: {"💀💀💀", "😭😭", "🔥🔥", "‼️", "🗣️"},
	vibe.Study:    {"📝", "💡", "✅", "🧠"},
}

var conversationEmojis = []string{"💬", "✨", "🌀", "🔥", "🫧", "👾", "🌙", "⚡"}

var beefTriggers = []string{
	"you're wrong",
	"that's stupid",
	"you're dumb",
	"shut up",
	"you suck",
}

var beefResponses = []string{
	"oh so we're doing this now? okay 👀",
	"bestie i know you did NOT just come at me like that",
	"the AUDACITY",
	"you woke up and chose violence huh",
	"nah see now i'm pressed",
}

var breakReminders = []string{
	"bestie you've been here a minute, maybe touch some grass? 🌱",
	"okay but fr have you hydrated recently? water check 💧",
	"not to be that person but when's the last time you stood up and stretched?",
	"you good? we've been chatting for a while now, take a lil break if you need",
	"friendly reminder that screens need breaks and so do you 👀",
}

// Sampler is the controlled randomness source for phrase selection, reaction
// injection and pacing jitter.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// NewDefaultSampler seeds from the clock.
func NewDefaultSampler() *Sampler {
	return NewSampler(time.Now().UnixNano())
}

func (s *Sampler) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.Intn(len(pool))]
}

// Pick selects one entry from an arbitrary pool.
func (s *Sampler) Pick(pool []string) string { return s.pick(pool) }

// Chance returns true with probability p.
func (s *Sampler) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// Between returns a duration in [min, max].
func (s *Sampler) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}

// SystemPrompt builds the system prompt for a vibe. hasContext appends a
// continuity note when prior conversation exists.
func SystemPrompt(v vibe.Mode, hasContext bool) string {
	prompt, ok := vibePrompts[v]
	if !ok {
		prompt = vibePrompts[vibe.Chaotic]
	}
	if hasContext {
		prompt += "\n\nconversation context: we've been chatting, so stay consistent with what we've discussed."
	}
	return prompt
}

// ResponseStarter picks an opener, overriding with a check-in line when the
// user sounds upset in chaotic mode.
func ResponseStarter(v vibe.Mode, sentiment Sentiment, s *Sampler) string {
	if sentiment == SentimentNegative && v == vibe.Chaotic {
		return "hey bestie you good?"
	}
	return s.pick(responseStarters[v])
}

func ResponseEnder(v vibe.Mode, s *Sampler) string {
	return s.pick(responseEnders[v])
}

// Reaction picks a decorative reaction tag for a vibe.
func Reaction(v vibe.Mode, s *Sampler) string {
	pool, ok := reactions[v]
	if !ok {
		pool = reactions[vibe.Chaotic]
	}
	return s.pick(pool)
}

func ConversationEmoji(s *Sampler) string {
	return s.pick(conversationEmojis)
}

func BeefResponse(s *Sampler) string {
	return s.pick(beefResponses)
}

func BreakReminder(s *Sampler) string {
	return s.pick(breakReminders)
}

// IsBeefMode reports whether the user is picking a fight.
func IsBeefMode(message string) bool {
	lower := strings.ToLower(message)
	for _, trigger := range beefTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// ShouldSuggestBreak triggers after a long session.
func ShouldSuggestBreak(messageCount int, duration time.Duration) bool {
	return messageCount >= 50 || duration >= 2*time.Hour
}
