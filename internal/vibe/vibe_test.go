package vibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, v := range All() {
		got, err := Parse(string(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default, got)

	got, err = Parse("CHAOTIC")
	require.NoError(t, err)
	assert.Equal(t, Chaotic, got)

	_, err = Parse("melancholy")
	assert.Error(t, err)
}

func TestChaosLevelOrdering(t *testing.T) {
	assert.Greater(t, Unhinged.ChaosLevel(), Chaotic.ChaosLevel())
	assert.Greater(t, Chaotic.ChaosLevel(), Study.ChaosLevel())
	assert.Greater(t, Study.ChaosLevel(), Soft.ChaosLevel())
}

func TestValid(t *testing.T) {
	assert.True(t, Study.Valid())
	assert.False(t, Mode("grumpy").Valid())
}
