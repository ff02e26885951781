package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/chat"
	"github.com/chaobytes/chaogpt/internal/ratelimit"
	"github.com/chaobytes/chaogpt/internal/session"
)

type chatReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Vibe           string `json:"vibe"`
}

func setRateHeaders(c *gin.Context, info ratelimit.Info) {
	if info.Limit == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
}

// ChatUsage answers GETs with a pointer at the real endpoint.
func (h *Handler) ChatUsage(c *gin.Context) {
	ok(c, gin.H{
		"message": "POST here to chat bestie",
		"usage": gin.H{
			"method": "POST",
			"body":   gin.H{"message": "string (required)", "conversationId": "string (optional)", "vibe": "chaotic | soft | unhinged | study"},
		},
	})
}

// Chat relays one chat turn as an SSE stream.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apierr.InvalidRequest("invalid json body"))
		return
	}

	events, meta, err := h.ChatSvc.Stream(c.Request.Context(), chat.Request{
		SessionKey:     session.Resolve(c.Request.Header),
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Vibe:           req.Vibe,
	})
	setRateHeaders(c, meta.Rate)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Conversation-Id", meta.ConversationID)
	c.Header("X-Vibe", string(meta.Vibe))
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fmt.Fprintf(c.Writer, "data: {\"type\":\"error\",\"error\":\"streaming not supported\"}\n\n")
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				fmt.Fprintf(c.Writer, "data: {\"type\":\"error\",\"error\":\"encoding failed\"}\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", b)
			flusher.Flush()
			if ev.Terminal() {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
