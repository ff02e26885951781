// Package session derives stable per-caller keys from request metadata.
package session

import (
	"net/http"
	"strings"
)

const (
	keyPrefix   = "session_"
	tokenKeyLen = 16
	uaKeyLen    = 24
	fallbackKey = keyPrefix + "anonymous"
)

// Resolve returns a non-empty session key for the request. Resolution order:
// explicit session header, truncated bearer token, first forwarded address,
// truncated user agent, then a shared anonymous bucket. The anonymous bucket
// rate-limits unidentified traffic in aggregate, which is acceptable degraded
// behavior rather than an error.
func Resolve(h http.Header) string {
	if sid := strings.TrimSpace(h.Get("X-Session-Id")); sid != "" {
		return keyPrefix + sid
	}

	if auth := strings.TrimSpace(h.Get("Authorization")); auth != "" {
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != "" {
			if len(token) > tokenKeyLen {
				token = token[:tokenKeyLen]
			}
			return keyPrefix + "tok_" + token
		}
	}

	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return keyPrefix + first
		}
	}

	if ua := strings.TrimSpace(h.Get("User-Agent")); ua != "" {
		if len(ua) > uaKeyLen {
			ua = ua[:uaKeyLen]
		}
		return keyPrefix + "ua_" + ua
	}

	return fallbackKey
}
