// Package chat orchestrates a chat turn: admission control, conversation
// bookkeeping, prompt composition, upstream streaming and transcript commit.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaobytes/chaogpt/internal/ai"
	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/conversation"
	"github.com/chaobytes/chaogpt/internal/events"
	"github.com/chaobytes/chaogpt/internal/metrics"
	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/ratelimit"
	"github.com/chaobytes/chaogpt/internal/stream"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

type Request struct {
	SessionKey     string
	ConversationID string
	Message        string
	Vibe           string
}

// Meta is what the transport layer needs before the first event is
// written: response headers and the rate snapshot.
type Meta struct {
	ConversationID string
	Vibe           vibe.Mode
	Rate           ratelimit.Info
}

type Options struct {
	MaxMessageLen int
	ContextWindow int
	StarterChance float64
	EnderChance   float64
}

func (o Options) withDefaults() Options {
	if o.MaxMessageLen <= 0 {
		o.MaxMessageLen = 10000
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = 10
	}
	if o.StarterChance <= 0 {
		o.StarterChance = 0.4
	}
	if o.EnderChance <= 0 {
		o.EnderChance = 0.3
	}
	return o
}

type Service struct {
	store       conversation.Store
	limiter     ratelimit.SessionLimiter
	provider    ai.StreamProvider
	transformer *stream.Transformer
	sampler     *personality.Sampler
	publisher   events.Publisher
	opts        Options
	log         zerolog.Logger
}

func NewService(
	store conversation.Store,
	limiter ratelimit.SessionLimiter,
	provider ai.StreamProvider,
	transformer *stream.Transformer,
	sampler *personality.Sampler,
	publisher events.Publisher,
	opts Options,
	log zerolog.Logger,
) *Service {
	if sampler == nil {
		sampler = personality.NewDefaultSampler()
	}
	if transformer == nil {
		transformer = stream.NewTransformer(sampler)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:       store,
		limiter:     limiter,
		provider:    provider,
		transformer: transformer,
		sampler:     sampler,
		publisher:   publisher,
		opts:        opts.withDefaults(),
		log:         log,
	}
}

// Stream runs one chat turn. On error the returned Meta still carries the
// rate snapshot when admission got far enough to produce one.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan stream.Event, Meta, error) {
	meta := Meta{ConversationID: req.ConversationID}

	verdict, err := s.limiter.Check(ctx, req.SessionKey)
	if err != nil {
		return nil, meta, err
	}
	meta.Rate = verdict.Info
	if verdict.Limited {
		metrics.Rejections.WithLabelValues(metrics.ReasonRateLimit).Inc()
		return nil, meta, apierr.RateLimited()
	}
	if verdict.Spamming {
		metrics.Rejections.WithLabelValues(metrics.ReasonChaos).Inc()
		return nil, meta, apierr.Spamming()
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, meta, apierr.EmptyMessage()
	}
	if len(msg) > s.opts.MaxMessageLen {
		return nil, meta, apierr.MessageTooLong(s.opts.MaxMessageLen)
	}

	// The whole payload is validated before anything is recorded against
	// the session. A request with a bad vibe never counts as a violation.
	requested := vibe.Mode("")
	if req.Vibe != "" {
		parsed, err := vibe.Parse(req.Vibe)
		if err != nil {
			return nil, meta, apierr.InvalidVibe(req.Vibe)
		}
		requested = parsed
	}

	class := ratelimit.Classify(msg)
	info, err := s.limiter.Record(ctx, req.SessionKey, class)
	if err != nil {
		return nil, meta, err
	}
	meta.Rate = info
	if class != ratelimit.ClassNormal {
		metrics.Rejections.WithLabelValues(metrics.ReasonSpam).Inc()
		s.publishAsync(events.Envelope{
			Kind:       events.KindSpamRejected,
			SessionKey: req.SessionKey,
		})
		return nil, meta, apierr.SpamDetected()
	}

	v, rec, err := s.resolveConversation(ctx, req, msg, requested)
	if err != nil {
		return nil, meta, err
	}
	meta.ConversationID = rec.ID
	meta.Vibe = v

	sentiment := personality.DetectSentiment(msg)

	if _, err := s.store.AppendMessage(ctx, rec.ID, conversation.Message{
		Role:    conversation.RoleUser,
		Content: msg,
		Vibe:    v,
		Tokens:  conversation.EstimateTokens(msg),
	}); err != nil {
		return nil, meta, err
	}

	var chunks <-chan string
	var errs <-chan error
	if personality.IsBeefMode(msg) {
		chunks, errs = localStream(ctx, personality.BeefResponse(s.sampler))
	} else {
		history, err := s.store.Context(ctx, rec.ID, s.opts.ContextWindow)
		if err != nil {
			return nil, meta, err
		}
		prompt := s.composePrompt(v, sentiment, rec, history)
		chunks, errs = s.provider.StreamChat(ctx, prompt)
		chunks = s.decorate(ctx, v, sentiment, chunks)
	}

	evs, results := s.transformer.Run(ctx, v, chunks, errs)
	metrics.ActiveStreams.Inc()

	go s.commit(context.WithoutCancel(ctx), req.SessionKey, rec.ID, v, results)

	return evs, meta, nil
}

func (s *Service) resolveConversation(ctx context.Context, req Request, msg string, requested vibe.Mode) (vibe.Mode, *conversation.Record, error) {
	if req.ConversationID == "" {
		v := requested
		if v == "" {
			v = vibe.Default
		}
		rec, err := s.store.Create(ctx, msg, v)
		if err != nil {
			return "", nil, err
		}
		s.publishAsync(events.Envelope{
			Kind:           events.KindConversationCreated,
			ConversationID: rec.ID,
			SessionKey:     req.SessionKey,
			Vibe:           string(v),
		})
		return v, rec, nil
	}

	rec, err := s.store.Get(ctx, req.ConversationID)
	if err != nil {
		if err == conversation.ErrNotFound {
			return "", nil, apierr.NotFound()
		}
		return "", nil, err
	}

	v := rec.CurrentVibe
	if requested != "" && requested != rec.CurrentVibe {
		rec, err = s.store.SetVibe(ctx, rec.ID, requested)
		if err != nil {
			return "", nil, err
		}
		v = requested
	}
	return v, rec, nil
}

func (s *Service) composePrompt(v vibe.Mode, sentiment personality.Sentiment, rec *conversation.Record, history []conversation.Message) []ai.Message {
	system := personality.SystemPrompt(v, len(history) > 1)
	if personality.ShouldSuggestBreak(rec.Metadata.MessageCount, time.Since(rec.CreatedAt)) {
		system += "\n\nalso: " + personality.BreakReminder(s.sampler)
	}

	out := make([]ai.Message, 0, len(history)+1)
	out = append(out, ai.Message{Role: "system", Content: system})
	for _, m := range history {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// decorate optionally wraps the upstream token flow with a vibe-matched
// opener and closer.
func (s *Service) decorate(ctx context.Context, v vibe.Mode, sentiment personality.Sentiment, in <-chan string) <-chan string {
	starter := ""
	if sentiment == personality.SentimentNegative || s.sampler.Chance(s.opts.StarterChance) {
		starter = personality.ResponseStarter(v, sentiment, s.sampler)
	}
	ender := ""
	if s.sampler.Chance(s.opts.EnderChance) {
		ender = personality.ResponseEnder(v, s.sampler)
	}
	if starter == "" && ender == "" {
		return in
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		sent := false
		forward := func(tok string) bool {
			select {
			case out <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for tok := range in {
			if !sent {
				sent = true
				if starter != "" && !forward(starter+" ") {
					return
				}
			}
			if !forward(tok) {
				return
			}
		}
		if sent && ender != "" {
			forward(" " + ender)
		}
	}()
	return out
}

// localStream serves a canned reply through the normal pacing pipeline,
// skipping the upstream model entirely.
func localStream(ctx context.Context, text string) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		words := strings.Fields(text)
		for i, w := range words {
			tok := w
			if i < len(words)-1 {
				tok += " "
			}
			select {
			case chunks <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}

// commit persists the assistant turn once the stream finishes cleanly.
// Partial transcripts from failed or cancelled streams are discarded.
func (s *Service) commit(ctx context.Context, sessionKey, convID string, v vibe.Mode, results <-chan stream.Result) {
	defer metrics.ActiveStreams.Dec()

	res, ok := <-results
	if !ok {
		return
	}
	if !res.Completed {
		outcome := metrics.OutcomeFailed
		if res.Err == context.Canceled || res.Err == context.DeadlineExceeded {
			outcome = metrics.OutcomeCancelled
		}
		metrics.ChatsTotal.WithLabelValues(outcome).Inc()
		s.log.Warn().Err(res.Err).Str("conversation_id", convID).Msg("stream did not complete, discarding partial reply")
		return
	}

	tone := personality.DetectTone(res.Text, v)
	tokens := conversation.EstimateTokens(res.Text)

	if _, err := s.store.AppendMessage(ctx, convID, conversation.Message{
		Role:           conversation.RoleAssistant,
		Content:        res.Text,
		Vibe:           v,
		Tokens:         tokens,
		StreamDuration: res.Duration.Milliseconds(),
		EmotionalTone:  string(tone),
	}); err != nil {
		s.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to store assistant reply")
		return
	}
	if err := s.store.RecordResponseTime(ctx, convID, res.Duration); err != nil {
		s.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to record response time")
	}

	metrics.ChatsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	metrics.TokensStreamed.Add(float64(res.TokenCount))

	s.publishAsync(events.Envelope{
		Kind:           events.KindMessageAppended,
		ConversationID: convID,
		SessionKey:     sessionKey,
		Vibe:           string(v),
		Tokens:         tokens,
	})
}

// publishAsync fires an event without blocking the request path. Publish
// failures are logged and otherwise ignored.
func (s *Service) publishAsync(ev events.Envelope) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("kind", ev.Kind).Msg("event publish failed")
		}
	}()
}
