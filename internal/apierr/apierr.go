// Package apierr defines the error taxonomy exposed to API clients.
package apierr

import (
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/chaobytes/chaogpt/internal/ai"
)

// Machine-readable error codes. Tests assert against these; the human-readable
// message wording may change freely.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeEmptyMessage         = "empty_message"
	CodeMessageTooLong       = "message_too_long"
	CodeInvalidVibe          = "invalid_vibe"
	CodeRateLimitExceeded    = "rate_limit_exceeded"
	CodeSpamDetected         = "spam_detected"
	CodeNotFound             = "conversation_not_found"
	CodeUpstreamUnavailable  = "upstream_unavailable"
	CodeUpstreamClientError  = "upstream_client_error"
	CodeConfirmationRequired = "confirmation_required"
	CodeInternal             = "internal_error"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func New(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func InvalidRequest(msg string) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, msg)
}

func EmptyMessage() *Error {
	return New(http.StatusBadRequest, CodeEmptyMessage, "empty message? come on now, say something!")
}

func MessageTooLong(limit int) *Error {
	return New(http.StatusBadRequest, CodeMessageTooLong, "whoa that message is way too long, keep it shorter bestie")
}

func InvalidVibe(got string) *Error {
	return New(http.StatusBadRequest, CodeInvalidVibe, "\""+got+"\" isn't a vibe bestie, pick from: chaotic, soft, unhinged, study")
}

func RateLimited() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "whoa slow down bestie, you're sending too many messages! take a breath")
}

func SpamDetected() *Error {
	return New(http.StatusBadRequest, CodeSpamDetected, "that looks like spam bestie, try sending a real message")
}

func Spamming() *Error {
	return New(http.StatusTooManyRequests, CodeSpamDetected, "bestie stop spamming, i know you're bored but this ain't it")
}

func NotFound() *Error {
	return New(http.StatusNotFound, CodeNotFound, "can't find that conversation bestie")
}

func UpstreamUnavailable(msg string) *Error {
	if msg == "" {
		msg = "the model provider is not answering rn, try again in a sec"
	}
	return New(http.StatusBadGateway, CodeUpstreamUnavailable, msg)
}

func UpstreamClient(msg string) *Error {
	return New(http.StatusBadGateway, CodeUpstreamClientError, msg)
}

func ConfirmationRequired() *Error {
	return New(http.StatusBadRequest, CodeConfirmationRequired, "add ?confirm=yes if you really wanna delete everything (this is permanent bestie)")
}

func Internal() *Error {
	return New(http.StatusInternalServerError, CodeInternal, "oof something broke on our end, try again in a sec")
}

// From classifies an arbitrary error, preserving *Error values, mapping
// upstream provider and transport failures to the upstream codes, and
// folding everything else into internal_error.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var se *ai.StatusError
	if errors.As(err, &se) {
		if se.Retryable() {
			return UpstreamUnavailable("")
		}
		return UpstreamClient(se.Message)
	}

	var ne net.Error
	var ue *url.Error
	if errors.As(err, &ne) || errors.As(err, &ue) {
		return UpstreamUnavailable("")
	}

	return Internal()
}
