package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chaobytes/chaogpt/internal/ai"
	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/chat"
	"github.com/chaobytes/chaogpt/internal/conversation"
	"github.com/chaobytes/chaogpt/internal/events"
	"github.com/chaobytes/chaogpt/internal/personality"
)

type Handler struct {
	Store     conversation.Store
	ChatSvc   *chat.Service
	Upstream  ai.HealthChecker
	Sampler   *personality.Sampler
	Publisher events.Publisher
	Log       zerolog.Logger
}

func NewHandler(store conversation.Store, svc *chat.Service, upstream ai.HealthChecker, sampler *personality.Sampler, publisher events.Publisher, log zerolog.Logger) *Handler {
	if sampler == nil {
		sampler = personality.NewDefaultSampler()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{Store: store, ChatSvc: svc, Upstream: upstream, Sampler: sampler, Publisher: publisher, Log: log}
}

// publishAsync fires a lifecycle event off the request path. Failures are
// logged and otherwise ignored.
func (h *Handler) publishAsync(ev events.Envelope) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Publisher.Publish(ctx, ev); err != nil {
			h.Log.Warn().Err(err).Str("kind", ev.Kind).Msg("event publish failed")
		}
	}()
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// fail writes the error envelope. Every error leaving the API goes
// through here so the wire shape stays uniform.
func fail(c *gin.Context, err error) {
	ae := apierr.From(err)
	c.JSON(ae.Status, gin.H{"error": gin.H{
		"code":    ae.Code,
		"message": ae.Message,
	}})
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
