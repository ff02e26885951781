package stream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaobytes/chaogpt/internal/ai"
	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

// noPacing removes the artificial delays so tests run instantly.
func noPacing(vibe.Mode) personality.Pacing {
	return personality.Pacing{ReactionChance: 0}
}

func newTestTransformer() *Transformer {
	tr := NewTransformer(personality.NewSampler(1))
	tr.PacingFor = noPacing
	return tr
}

func feed(tokens ...string) (<-chan string, <-chan error) {
	chunks := make(chan string, len(tokens))
	errs := make(chan error, 1)
	for _, tok := range tokens {
		chunks <- tok
	}
	close(errs)
	close(chunks)
	return chunks, errs
}

func feedError(err error, tokens ...string) (<-chan string, <-chan error) {
	chunks := make(chan string, len(tokens))
	errs := make(chan error, 1)
	for _, tok := range tokens {
		chunks <- tok
	}
	errs <- err
	close(errs)
	close(chunks)
	return chunks, errs
}

func drain(t *testing.T, events <-chan Event, results <-chan Result) ([]Event, Result) {
	t.Helper()
	var evs []Event
	for ev := range events {
		evs = append(evs, ev)
	}
	res, ok := <-results
	require.True(t, ok, "a result must always arrive")
	return evs, res
}

func TestRunEmitsThinkingFirstAndEndLast(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feed("hello", " world")

	events, results := tr.Run(context.Background(), vibe.Chaotic, chunks, errs)
	evs, res := drain(t, events, results)

	require.NotEmpty(t, evs)
	assert.Equal(t, TypeThinking, evs[0].Type)
	assert.Equal(t, TypeEnd, evs[len(evs)-1].Type)

	assert.True(t, res.Completed)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, 2, res.TokenCount)
	require.NoError(t, res.Err)
}

func TestRunEmitsExactlyOneTerminalEvent(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feed("a", "b", "c.")

	events, results := tr.Run(context.Background(), vibe.Study, chunks, errs)
	evs, _ := drain(t, events, results)

	terminals := 0
	for i, ev := range evs {
		if ev.Terminal() {
			terminals++
			assert.Equal(t, len(evs)-1, i, "nothing follows a terminal event")
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestRunEmitsEmotionBeforeEnd(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feed("omg", " amazing!!")

	events, results := tr.Run(context.Background(), vibe.Soft, chunks, errs)
	evs, _ := drain(t, events, results)

	require.GreaterOrEqual(t, len(evs), 2)
	emotion := evs[len(evs)-2]
	assert.Equal(t, TypeEmotion, emotion.Type)
	assert.Equal(t, "hyped", emotion.Emotion)
	assert.Equal(t, TypeEnd, evs[len(evs)-1].Type)
}

func TestRunContentPreservesTokenOrder(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feed("one ", "two ", "three")

	events, results := tr.Run(context.Background(), vibe.Unhinged, chunks, errs)
	evs, _ := drain(t, events, results)

	var contents []string
	for _, ev := range evs {
		if ev.Type == TypeContent {
			contents = append(contents, ev.Token)
		}
	}
	assert.Equal(t, []string{"one ", "two ", "three"}, contents)
}

func TestRunUpstreamErrorIsTerminal(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feedError(errors.New("boom"), "partial")

	events, results := tr.Run(context.Background(), vibe.Chaotic, chunks, errs)
	evs, res := drain(t, events, results)

	last := evs[len(evs)-1]
	assert.Equal(t, TypeError, last.Type)
	assert.NotEmpty(t, last.Error)

	assert.False(t, res.Completed)
	assert.Error(t, res.Err)
}

func TestRunUpstreamStatusErrorKeepsItsClassification(t *testing.T) {
	tr := newTestTransformer()
	chunks, errs := feedError(&ai.StatusError{StatusCode: http.StatusServiceUnavailable}, "partial")

	events, results := tr.Run(context.Background(), vibe.Chaotic, chunks, errs)
	evs, res := drain(t, events, results)

	last := evs[len(evs)-1]
	require.Equal(t, TypeError, last.Type)
	assert.Equal(t, apierr.UpstreamUnavailable("").Message, last.Error)
	assert.NotEqual(t, apierr.Internal().Message, last.Error)

	var se *ai.StatusError
	assert.ErrorAs(t, res.Err, &se)
}

func TestRunCancellation(t *testing.T) {
	tr := newTestTransformer()
	ctx, cancel := context.WithCancel(context.Background())

	chunks := make(chan string)
	errs := make(chan error, 1)

	events, results := tr.Run(ctx, vibe.Chaotic, chunks, errs)

	// One token through, then the client goes away.
	chunks <- "tok"
	cancel()

	var res Result
	done := make(chan struct{})
	go func() {
		for range events {
		}
		res = <-results
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transformer did not stop after cancellation")
	}
	assert.False(t, res.Completed)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunReactionsOnlyAtSentenceBoundaries(t *testing.T) {
	tr := NewTransformer(personality.NewSampler(3))
	tr.PacingFor = func(vibe.Mode) personality.Pacing {
		return personality.Pacing{ReactionChance: 1}
	}
	chunks, errs := feed("plain ", "token ", "done.")

	events, results := tr.Run(context.Background(), vibe.Chaotic, chunks, errs)
	evs, _ := drain(t, events, results)

	for i, ev := range evs {
		if ev.Type == TypeReaction {
			require.Greater(t, i, 0)
			prev := evs[i-1]
			assert.Equal(t, TypeContent, prev.Type)
			assert.Equal(t, "done.", prev.Token, "reaction follows a sentence-ending token")
			assert.NotEmpty(t, ev.Reaction)
		}
	}
}

func TestEventTerminal(t *testing.T) {
	assert.False(t, Thinking().Terminal())
	assert.False(t, Content("x").Terminal())
	assert.False(t, Reaction("💀").Terminal())
	assert.False(t, Emotion("hyped").Terminal())
	assert.True(t, End().Terminal())
	assert.True(t, ErrorEvent("nope").Terminal())
}
