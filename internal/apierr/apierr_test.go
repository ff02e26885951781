package apierr

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chaobytes/chaogpt/internal/ai"
)

func TestFromPreservesTypedErrors(t *testing.T) {
	ae := From(RateLimited())
	assert.Equal(t, CodeRateLimitExceeded, ae.Code)
	assert.Equal(t, http.StatusTooManyRequests, ae.Status)

	wrapped := fmt.Errorf("handling request: %w", NotFound())
	ae = From(wrapped)
	assert.Equal(t, CodeNotFound, ae.Code)
}

func TestFromFoldsUnknownErrors(t *testing.T) {
	ae := From(errors.New("disk exploded"))
	assert.Equal(t, CodeInternal, ae.Code)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.NotContains(t, ae.Message, "disk", "internal details never leak to clients")
}

func TestFromClassifiesUpstreamStatuses(t *testing.T) {
	ae := From(&ai.StatusError{StatusCode: http.StatusServiceUnavailable, Message: "overloaded"})
	assert.Equal(t, CodeUpstreamUnavailable, ae.Code)
	assert.Equal(t, http.StatusBadGateway, ae.Status)

	ae = From(fmt.Errorf("stream: %w", &ai.StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.Equal(t, CodeUpstreamUnavailable, ae.Code)

	ae = From(&ai.StatusError{StatusCode: http.StatusBadRequest, Message: "model not found"})
	assert.Equal(t, CodeUpstreamClientError, ae.Code)
	assert.Equal(t, "model not found", ae.Message)
}

func TestFromClassifiesTransportErrors(t *testing.T) {
	ae := From(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.Equal(t, CodeUpstreamUnavailable, ae.Code)

	ae = From(&url.Error{Op: "Post", URL: "https://v98store.com", Err: errors.New("timeout")})
	assert.Equal(t, CodeUpstreamUnavailable, ae.Code)
	assert.NotContains(t, ae.Message, "v98store", "transport details never leak to clients")
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, EmptyMessage().Status)
	assert.Equal(t, http.StatusBadRequest, InvalidVibe("x").Status)
	assert.Equal(t, http.StatusBadRequest, SpamDetected().Status)
	assert.Equal(t, http.StatusTooManyRequests, Spamming().Status)
	assert.Equal(t, http.StatusNotFound, NotFound().Status)
	assert.Equal(t, http.StatusBadGateway, UpstreamUnavailable("").Status)
	assert.Equal(t, http.StatusBadRequest, ConfirmationRequired().Status)
}
