// Package stream turns raw upstream tokens into the paced event feed
// the chat endpoint serves over SSE.
package stream

type EventType string

const (
	TypeThinking EventType = "thinking"
	TypeContent  EventType = "content"
	TypeReaction EventType = "reaction"
	TypeEmotion  EventType = "emotion"
	TypeEnd      EventType = "end"
	TypeError    EventType = "error"
)

// Event is one frame of the chat stream. Only the field matching the
// type is set.
type Event struct {
	Type     EventType `json:"type"`
	Token    string    `json:"token,omitempty"`
	Reaction string    `json:"reaction,omitempty"`
	Emotion  string    `json:"emotion,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func Thinking() Event             { return Event{Type: TypeThinking} }
func Content(token string) Event  { return Event{Type: TypeContent, Token: token} }
func Reaction(r string) Event     { return Event{Type: TypeReaction, Reaction: r} }
func Emotion(tone string) Event   { return Event{Type: TypeEmotion, Emotion: tone} }
func End() Event                  { return Event{Type: TypeEnd} }
func ErrorEvent(msg string) Event { return Event{Type: TypeError, Error: msg} }

// Terminal reports whether no further events may follow.
func (e Event) Terminal() bool {
	return e.Type == TypeEnd || e.Type == TypeError
}
