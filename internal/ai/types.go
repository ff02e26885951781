package ai

import (
	"context"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are completion settings forwarded to the upstream model.
type Params struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// StreamProvider streams assistant content tokens over a channel pair.
// Both channels are closed when the stream finishes.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// HealthChecker reports whether the upstream provider is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// StatusError is a non-2xx reply from the upstream provider.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is worth another attempt. Client
// errors other than 429 will fail identically on a retry.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
