package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/conversation"
	"github.com/chaobytes/chaogpt/internal/events"
	"github.com/chaobytes/chaogpt/internal/session"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

// ListConversations also serves search (?q=) and stats (?stats=true).
func (h *Handler) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("stats") == "true" {
		stats, err := h.Store.Stats(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, stats)
		return
	}

	var (
		recs []*conversation.Record
		err  error
	)
	if q := c.Query("q"); q != "" {
		recs, err = h.Store.Search(ctx, q)
	} else {
		recs, err = h.Store.List(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversations": recs, "count": len(recs)})
}

type createConversationReq struct {
	Message string `json:"message"`
	Vibe    string `json:"vibe"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	v := vibe.Default
	if req.Vibe != "" {
		parsed, err := vibe.Parse(req.Vibe)
		if err != nil {
			fail(c, apierr.InvalidVibe(req.Vibe))
			return
		}
		v = parsed
	}

	rec, err := h.Store.Create(c.Request.Context(), req.Message, v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GetConversation also serves export (?format=json) and the
// messages-only view (?messagesOnly=true).
func (h *Handler) GetConversation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if c.Query("format") == "json" {
		data, err := h.Store.Export(ctx, id)
		if err != nil {
			fail(c, mapStoreErr(err))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="conversation-`+id+`.json"`)
		c.Data(http.StatusOK, "application/json", data)
		return
	}

	rec, err := h.Store.Get(ctx, id)
	if err != nil {
		fail(c, mapStoreErr(err))
		return
	}

	if c.Query("messagesOnly") == "true" {
		ok(c, gin.H{"messages": rec.Messages})
		return
	}
	ok(c, rec)
}

type updateConversationReq struct {
	Title       *string `json:"title"`
	Emoji       *string `json:"emoji"`
	CurrentVibe *string `json:"currentVibe"`
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apierr.InvalidRequest("invalid json body"))
		return
	}
	if req.Title == nil && req.Emoji == nil && req.CurrentVibe == nil {
		fail(c, apierr.InvalidRequest("nothing to update: send title, emoji or currentVibe"))
		return
	}

	upd := conversation.Update{Title: req.Title, Emoji: req.Emoji}
	if req.CurrentVibe != nil {
		v, err := vibe.Parse(*req.CurrentVibe)
		if err != nil {
			fail(c, apierr.InvalidVibe(*req.CurrentVibe))
			return
		}
		upd.Vibe = &v
	}

	rec, err := h.Store.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		fail(c, mapStoreErr(err))
		return
	}
	ok(c, rec)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	deleted, err := h.Store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !deleted {
		fail(c, apierr.NotFound())
		return
	}
	h.publishAsync(events.Envelope{
		Kind:           events.KindConversationDeleted,
		ConversationID: c.Param("id"),
		SessionKey:     session.Resolve(c.Request.Header),
	})
	ok(c, gin.H{"deleted": true})
}

// DeleteAllConversations requires ?confirm=yes. Anything else is refused.
func (h *Handler) DeleteAllConversations(c *gin.Context) {
	if c.Query("confirm") != "yes" {
		fail(c, apierr.ConfirmationRequired())
		return
	}
	n, err := h.Store.DeleteAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if n > 0 {
		h.publishAsync(events.Envelope{
			Kind:       events.KindConversationDeleted,
			SessionKey: session.Resolve(c.Request.Header),
			Count:      n,
		})
	}
	ok(c, gin.H{"deleted": n})
}

func (h *Handler) ImportConversation(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4*1024*1024))
	if err != nil {
		fail(c, apierr.InvalidRequest("could not read request body"))
		return
	}

	rec, err := h.Store.Import(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, conversation.ErrInvalidImport) {
			fail(c, apierr.InvalidRequest("that doesn't look like an exported conversation"))
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func mapStoreErr(err error) error {
	if errors.Is(err, conversation.ErrNotFound) {
		return apierr.NotFound()
	}
	return err
}
