// Package conversation holds chat transcripts and their derived aggregates.
package conversation

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/chaobytes/chaogpt/internal/vibe"
)

// ErrNotFound is returned for unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidImport is returned when an import payload is not a usable
// conversation export.
var ErrInvalidImport = errors.New("invalid conversation export")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
	Vibe           vibe.Mode `json:"vibe"`
	Reactions      []string  `json:"reactions"`
	Tokens         int       `json:"tokens"`
	StreamDuration int64     `json:"streamDuration,omitempty"` // milliseconds
	EmotionalTone  string    `json:"emotionalTone,omitempty"`
}

// Aggregates are derived counters kept in sync with the message slice.
type Aggregates struct {
	MessageCount        int     `json:"messageCount"`
	TotalTokens         int     `json:"totalTokens"`
	AverageResponseTime float64 `json:"averageResponseTime"` // milliseconds
	ChaosLevel          int     `json:"chaosLevel"`
}

type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Emoji       string     `json:"emoji"`
	Messages    []Message  `json:"messages"`
	CurrentVibe vibe.Mode  `json:"currentVibe"`
	VibeScore   int        `json:"vibeScore"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Metadata    Aggregates `json:"metadata"`
}

// Stats aggregates across every stored conversation.
type Stats struct {
	TotalConversations int       `json:"totalConversations"`
	TotalMessages      int       `json:"totalMessages"`
	AverageVibeScore   float64   `json:"averageVibeScore"`
	MostUsedVibe       vibe.Mode `json:"mostUsedVibe"`
	ChaosScore         float64   `json:"chaosScore"`
}

// Update carries the caller-editable fields of a record.
type Update struct {
	Title *string
	Emoji *string
	Vibe  *vibe.Mode
}

const charsPerToken = 4

// EstimateTokens approximates the token count of a text at a fixed
// characters-per-token ratio.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

const titleMaxLen = 50

// TitleFrom derives a conversation title from its first message.
func TitleFrom(firstMessage string) string {
	title := strings.Join(strings.Fields(firstMessage), " ")
	if title == "" {
		return "new chat"
	}
	runes := []rune(title)
	if len(runes) > titleMaxLen {
		title = strings.TrimSpace(string(runes[:titleMaxLen])) + "..."
	}
	return title
}

// NewConversationID returns a ULID, sortable by creation time.
func NewConversationID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewMessageID returns a random message id.
func NewMessageID() string {
	return uuid.NewString()
}

const vibeScoreWindow = 10

// VibeScoreOf rates the recent energy of a conversation on a 0-100 scale.
// Deterministic over the message contents.
func VibeScoreOf(msgs []Message) int {
	if len(msgs) == 0 {
		return 50
	}
	recent := msgs
	if len(recent) > vibeScoreWindow {
		recent = recent[len(recent)-vibeScoreWindow:]
	}

	score := 50
	for _, m := range recent {
		score += 3 * strings.Count(m.Content, "!")
		score += 2 * len(m.Reactions)
		if isMostlyCaps(m.Content) {
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func isMostlyCaps(s string) bool {
	upper, letters := 0, 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters >= 5 && upper*2 > letters
}
