package session

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrecedence(t *testing.T) {
	h := http.Header{}
	h.Set("X-Session-Id", "abc123")
	h.Set("Authorization", "Bearer tok-should-lose")
	h.Set("X-Forwarded-For", "10.0.0.1")
	h.Set("User-Agent", "curl/8.0")

	assert.Equal(t, "session_abc123", Resolve(h))

	h.Del("X-Session-Id")
	assert.Equal(t, "session_tok_tok-should-lose", Resolve(h))

	h.Del("Authorization")
	assert.Equal(t, "session_10.0.0.1", Resolve(h))

	h.Del("X-Forwarded-For")
	assert.Equal(t, "session_ua_curl/8.0", Resolve(h))

	h.Del("User-Agent")
	assert.Equal(t, "session_anonymous", Resolve(h))
}

func TestResolveTruncatesLongTokens(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+strings.Repeat("x", 64))
	got := Resolve(h)
	assert.Equal(t, "session_tok_"+strings.Repeat("x", 16), got)
}

func TestResolveTruncatesLongUserAgent(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", strings.Repeat("m", 100))
	got := Resolve(h)
	assert.Equal(t, "session_ua_"+strings.Repeat("m", 24), got)
}

func TestResolveForwardedForTakesFirstHop(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "session_203.0.113.7", Resolve(h))
}

func TestResolveEmptyBearer(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer   ")
	assert.Equal(t, "session_anonymous", Resolve(h))
}
