package ratelimit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRepeatedCharacterRuns(t *testing.T) {
	assert.Equal(t, ClassSpam, Classify(strings.Repeat("a", 50)))
	assert.Equal(t, ClassSpam, Classify("aaaaaaaaaaaa help"))
	assert.Equal(t, ClassNormal, Classify("aaah that's wild"))
}

func TestClassifyShouting(t *testing.T) {
	assert.Equal(t, ClassSpam, Classify("WHY IS EVERYTHING ON FIRE RIGHT NOW"))
	// Short all-caps messages are fine.
	assert.Equal(t, ClassNormal, Classify("LOL OK"))
	// Mixed case of the same length is fine.
	assert.Equal(t, ClassNormal, Classify("why is everything on fire right now"))
}

func TestClassifyPunctuationRuns(t *testing.T) {
	assert.Equal(t, ClassSpam, Classify("answer me!!!!!!"))
	assert.Equal(t, ClassNormal, Classify("really?! no way"))
}

func TestClassifyNearEmpty(t *testing.T) {
	assert.Equal(t, ClassSpam, Classify("x"))
	assert.Equal(t, ClassSpam, Classify(" "))
	assert.Equal(t, ClassNormal, Classify("hi"))
}

func TestClassifyAbuseOutranksSpam(t *testing.T) {
	assert.Equal(t, ClassAbuse, Classify("kys!!!!!!"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	msg := "what's the deal with airline food"
	first := Classify(msg)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(msg))
	}
}
