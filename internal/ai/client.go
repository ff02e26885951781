package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL  string
	APIKey   string
	Params   Params
	Attempts int
	Backoff  time.Duration
	Client   *http.Client

	log zerolog.Logger
}

type chatReq struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	PresencePenalty  float64   `json:"presence_penalty"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
}

type streamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey string, params Params, attempts int, initialBackoff time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://v98store.com"
	}
	if attempts <= 0 {
		attempts = 3
	}
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Params:   params,
		Attempts: attempts,
		Backoff:  initialBackoff,
		Client:   &http.Client{Timeout: 90 * time.Second},
		log:      log,
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// open establishes the streaming response, retrying on network errors and
// retryable statuses. The caller owns the returned body.
func (c *Client) open(ctx context.Context, body []byte) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/chat/completions"), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		r, err := c.Client.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(r.Body, 4*1024))
			r.Body.Close()
			se := &StatusError{StatusCode: r.StatusCode, Message: strings.TrimSpace(string(raw))}
			if !se.Retryable() {
				return backoff.Permanent(se)
			}
			return se
		}
		resp = r
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.Backoff
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.Attempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("upstream attempt failed")
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// StreamChat streams assistant content tokens via SSE. Malformed stream
// lines are skipped, not fatal; the stream ends on [DONE] or EOF.
func (c *Client) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if c.Client == nil {
			errs <- errors.New("upstream: http client is nil")
			return
		}
		if strings.TrimSpace(c.APIKey) == "" {
			errs <- errors.New("upstream: api key is required")
			return
		}
		model := strings.TrimSpace(c.Params.Model)
		if model == "" {
			errs <- errors.New("upstream: model is required")
			return
		}

		body, err := json.Marshal(chatReq{
			Model:            model,
			Messages:         messages,
			Stream:           true,
			Temperature:      c.Params.Temperature,
			MaxTokens:        c.Params.MaxTokens,
			PresencePenalty:  c.Params.PresencePenalty,
			FrequencyPenalty: c.Params.FrequencyPenalty,
		})
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.open(ctx, body)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var decoded streamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				c.log.Warn().Str("line", data).Msg("skipping malformed stream line")
				continue
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New(decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			delta := decoded.Choices[0].Delta.Content
			if delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
	}()

	return chunks, errs
}

// Healthy probes the models listing endpoint with a short deadline.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/models"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream: health check returned status %d", resp.StatusCode)
	}
	return nil
}
