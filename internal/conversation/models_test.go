package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hey"))
	assert.Equal(t, 1, EstimateTokens("hiya"))
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "new chat", TitleFrom(""))
	assert.Equal(t, "new chat", TitleFrom("   "))
	assert.Equal(t, "hello world", TitleFrom("hello\n  world"))

	long := strings.Repeat("word ", 30)
	title := TitleFrom(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len([]rune(title)), 53)
}

func TestVibeScoreOf(t *testing.T) {
	assert.Equal(t, 50, VibeScoreOf(nil))

	calm := []Message{{Content: "hello there"}}
	assert.Equal(t, 50, VibeScoreOf(calm))

	loud := []Message{{Content: "WOW THIS IS GREAT!!!", Reactions: []string{"🔥", "💀"}}}
	score := VibeScoreOf(loud)
	assert.Greater(t, score, 50)
	assert.LessOrEqual(t, score, 100)

	// Only the latest messages count.
	msgs := make([]Message, 0, 12)
	for i := 0; i < 12; i++ {
		msgs = append(msgs, Message{Content: "fine"})
	}
	assert.Equal(t, 50, VibeScoreOf(msgs))
}
