package stream

import (
	"context"
	"strings"
	"time"

	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

// Result summarizes a finished stream. Text and Duration are only
// meaningful when Completed is true.
type Result struct {
	Text       string
	TokenCount int
	Duration   time.Duration
	Completed  bool
	Err        error
}

// Transformer paces upstream tokens and decorates them with personality
// events. PacingFor may be overridden to disable pacing in tests.
type Transformer struct {
	Sampler   *personality.Sampler
	PacingFor func(v vibe.Mode) personality.Pacing
	now       func() time.Time
}

func NewTransformer(sampler *personality.Sampler) *Transformer {
	if sampler == nil {
		sampler = personality.NewDefaultSampler()
	}
	return &Transformer{
		Sampler:   sampler,
		PacingFor: personality.PacingFor,
		now:       time.Now,
	}
}

func endsSentence(token string) bool {
	t := strings.TrimSpace(token)
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// wait sleeps for d unless the context is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes the provider channel pair and emits the event feed.
// Exactly one terminal event is sent, then the events channel closes and
// a single Result arrives on the result channel.
func (t *Transformer) Run(ctx context.Context, v vibe.Mode, chunks <-chan string, errs <-chan error) (<-chan Event, <-chan Result) {
	events := make(chan Event, 32)
	results := make(chan Result, 1)

	go func() {
		defer close(events)
		defer close(results)

		start := t.now()
		p := t.PacingFor(v)
		var sb strings.Builder
		tokens := 0

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		fail := func(err error) {
			emit(ErrorEvent(apierr.From(err).Message))
			results <- Result{Err: err, Duration: t.now().Sub(start)}
		}

		if err := wait(ctx, p.ThinkingDelay); err != nil {
			fail(err)
			return
		}
		if !emit(Thinking()) {
			fail(ctx.Err())
			return
		}

		finish := func() {
			text := sb.String()
			if !emit(Emotion(string(personality.DetectTone(text, v)))) {
				fail(ctx.Err())
				return
			}
			if !emit(End()) {
				fail(ctx.Err())
				return
			}
			results <- Result{
				Text:       text,
				TokenCount: tokens,
				Duration:   t.now().Sub(start),
				Completed:  true,
			}
		}

		for {
			select {
			case <-ctx.Done():
				fail(ctx.Err())
				return

			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					fail(err)
					return
				}

			case tok, ok := <-chunks:
				if !ok {
					// The provider closes errs before chunks, so a trailing
					// error is already buffered if one occurred.
					if errs != nil {
						if err, ok2 := <-errs; ok2 && err != nil {
							fail(err)
							return
						}
					}
					finish()
					return
				}

				if err := wait(ctx, p.TokenDelay(t.Sampler)); err != nil {
					fail(err)
					return
				}
				if !emit(Content(tok)) {
					fail(ctx.Err())
					return
				}
				sb.WriteString(tok)
				tokens++

				if endsSentence(tok) && t.Sampler.Chance(p.ReactionChance) {
					if !emit(Reaction(personality.Reaction(v, t.Sampler))) {
						fail(ctx.Err())
						return
					}
				}
			}
		}
	}()

	return events, results
}
