package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

// Store is the conversation persistence contract. Implementations must keep
// per-conversation operations atomic while operations on different
// conversations proceed independently.
type Store interface {
	Create(ctx context.Context, firstMessage string, v vibe.Mode) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Search(ctx context.Context, query string) ([]*Record, error)
	Update(ctx context.Context, id string, upd Update) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
	AppendMessage(ctx context.Context, id string, msg Message) (*Message, error)
	SetVibe(ctx context.Context, id string, v vibe.Mode) (*Record, error)
	RecordResponseTime(ctx context.Context, id string, d time.Duration) error
	Context(ctx context.Context, id string, max int) ([]Message, error)
	Stats(ctx context.Context) (Stats, error)
	Export(ctx context.Context, id string) ([]byte, error)
	Import(ctx context.Context, data []byte) (*Record, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

type entry struct {
	mu  sync.Mutex
	rec *Record
}

// MemoryStore keeps conversations in a process-lifetime map. Map membership
// is guarded by mu; each record carries its own lock so appends to different
// conversations never contend.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	messageCap int
	sampler    *personality.Sampler
	now        func() time.Time
}

func NewMemoryStore(messageCap int, sampler *personality.Sampler) *MemoryStore {
	if messageCap <= 0 {
		messageCap = 50
	}
	if sampler == nil {
		sampler = personality.NewDefaultSampler()
	}
	return &MemoryStore{
		entries:    make(map[string]*entry),
		messageCap: messageCap,
		sampler:    sampler,
		now:        time.Now,
	}
}

func cloneRecord(r *Record) *Record {
	out := *r
	out.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		out.Messages[i] = m
		out.Messages[i].Reactions = append([]string(nil), m.Reactions...)
	}
	return &out
}

func (s *MemoryStore) entryFor(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *MemoryStore) Create(_ context.Context, firstMessage string, v vibe.Mode) (*Record, error) {
	now := s.now()
	rec := &Record{
		ID:          NewConversationID(),
		Title:       TitleFrom(firstMessage),
		Emoji:       personality.ConversationEmoji(s.sampler),
		Messages:    []Message{},
		CurrentVibe: v,
		VibeScore:   50,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    Aggregates{ChaosLevel: v.ChaosLevel()},
	}

	s.mu.Lock()
	s.entries[rec.ID] = &entry{rec: rec}
	s.mu.Unlock()

	return cloneRecord(rec), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	e, ok := s.entryFor(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecord(e.rec), nil
}

func (s *MemoryStore) snapshot() []*Record {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneRecord(e.rec))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	return s.snapshot(), nil
}

func (s *MemoryStore) Search(_ context.Context, query string) ([]*Record, error) {
	lower := strings.ToLower(query)
	var out []*Record
	for _, rec := range s.snapshot() {
		if strings.Contains(strings.ToLower(rec.Title), lower) {
			out = append(out, rec)
			continue
		}
		for _, m := range rec.Messages {
			if strings.Contains(strings.ToLower(m.Content), lower) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, upd Update) (*Record, error) {
	e, ok := s.entryFor(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if upd.Title != nil {
		e.rec.Title = *upd.Title
	}
	if upd.Emoji != nil {
		e.rec.Emoji = *upd.Emoji
	}
	if upd.Vibe != nil {
		e.rec.CurrentVibe = *upd.Vibe
		e.rec.Metadata.ChaosLevel = upd.Vibe.ChaosLevel()
	}
	e.rec.UpdatedAt = s.now()
	return cloneRecord(e.rec), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*entry)
	return n, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, id string, msg Message) (*Message, error) {
	e, ok := s.entryFor(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.ID == "" {
		msg.ID = NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Reactions == nil {
		msg.Reactions = []string{}
	}

	rec := e.rec
	rec.Messages = append(rec.Messages, msg)
	rec.Metadata.MessageCount++
	rec.Metadata.TotalTokens += msg.Tokens

	// Bounded retention: evict the oldest message, keeping aggregates exact.
	for len(rec.Messages) > s.messageCap {
		evicted := rec.Messages[0]
		rec.Messages = rec.Messages[1:]
		rec.Metadata.MessageCount--
		rec.Metadata.TotalTokens -= evicted.Tokens
	}

	rec.VibeScore = VibeScoreOf(rec.Messages)
	rec.UpdatedAt = s.now()

	stored := msg
	return &stored, nil
}

func (s *MemoryStore) SetVibe(ctx context.Context, id string, v vibe.Mode) (*Record, error) {
	return s.Update(ctx, id, Update{Vibe: &v})
}

func (s *MemoryStore) RecordResponseTime(_ context.Context, id string, d time.Duration) error {
	e, ok := s.entryFor(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.rec.Metadata.MessageCount
	if n <= 0 {
		n = 1
	}
	cur := e.rec.Metadata.AverageResponseTime
	e.rec.Metadata.AverageResponseTime = (cur*float64(n-1) + float64(d.Milliseconds())) / float64(n)
	return nil
}

func (s *MemoryStore) Context(_ context.Context, id string, max int) ([]Message, error) {
	e, ok := s.entryFor(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := e.rec.Messages
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	recs := s.snapshot()
	if len(recs) == 0 {
		return Stats{AverageVibeScore: 50, MostUsedVibe: vibe.Default}, nil
	}

	var totalMessages int
	var vibeSum, chaosSum float64
	counts := map[vibe.Mode]int{}
	for _, r := range recs {
		totalMessages += r.Metadata.MessageCount
		vibeSum += float64(r.VibeScore)
		chaosSum += float64(r.Metadata.ChaosLevel)
		counts[r.CurrentVibe]++
	}

	most := vibe.Default
	for _, v := range vibe.All() {
		if counts[v] > counts[most] {
			most = v
		}
	}

	n := float64(len(recs))
	return Stats{
		TotalConversations: len(recs),
		TotalMessages:      totalMessages,
		AverageVibeScore:   vibeSum / n,
		MostUsedVibe:       most,
		ChaosScore:         chaosSum / n,
	}, nil
}

func (s *MemoryStore) Export(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(rec, "", "  ")
}

// normalizeImport trims an imported transcript to the retention cap and
// rebuilds the aggregates from the retained messages. Exported metadata is
// never trusted; a differently-configured (or doctored) export must not
// smuggle in a record that violates retention.
func normalizeImport(rec *Record, messageCap int) {
	if !rec.CurrentVibe.Valid() {
		rec.CurrentVibe = vibe.Default
	}
	if len(rec.Messages) > messageCap {
		rec.Messages = rec.Messages[len(rec.Messages)-messageCap:]
	}

	var tokens int
	var durSum, durN int64
	for _, m := range rec.Messages {
		tokens += m.Tokens
		if m.StreamDuration > 0 {
			durSum += m.StreamDuration
			durN++
		}
	}

	rec.Metadata = Aggregates{
		MessageCount: len(rec.Messages),
		TotalTokens:  tokens,
		ChaosLevel:   rec.CurrentVibe.ChaosLevel(),
	}
	if durN > 0 {
		rec.Metadata.AverageResponseTime = float64(durSum) / float64(durN)
	}
	rec.VibeScore = VibeScoreOf(rec.Messages)
}

// Import re-creates an exported conversation under fresh identifiers and
// timestamps; message order and content are preserved up to the retention
// cap, and aggregates are recomputed from what is actually retained.
func (s *MemoryStore) Import(_ context.Context, data []byte) (*Record, error) {
	var in Record
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, ErrInvalidImport
	}
	if in.ID == "" || in.Messages == nil {
		return nil, ErrInvalidImport
	}

	now := s.now()
	rec := in
	rec.ID = NewConversationID()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Messages = make([]Message, len(in.Messages))
	for i, m := range in.Messages {
		m.ID = NewMessageID()
		m.CreatedAt = now
		rec.Messages[i] = m
	}
	normalizeImport(&rec, s.messageCap)

	s.mu.Lock()
	s.entries[rec.ID] = &entry{rec: &rec}
	s.mu.Unlock()

	return cloneRecord(&rec), nil
}

func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		stale := e.rec.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// RunSweeper evicts stale conversations on the given interval until ctx is
// cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Cleanup(ctx, ttl)
		}
	}
}
