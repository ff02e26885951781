package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chaobytes/chaogpt/internal/apierr"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

type vibeAnalysis struct {
	CurrentVibe   vibe.Mode `json:"currentVibe"`
	VibeScore     int       `json:"vibeScore"`
	SuggestedVibe vibe.Mode `json:"suggestedVibe"`
	Reasoning     string    `json:"reasoning"`
	ChaosLevel    int       `json:"chaosLevel"`
}

// suggestVibe maps the conversation's energy to the vibe that fits it.
// Chaos extremes win over the vibe score.
func suggestVibe(current vibe.Mode, vibeScore, chaosLevel int) (vibe.Mode, string) {
	switch {
	case chaosLevel > 75:
		return vibe.Unhinged, "this conversation is pure chaos, lean into it"
	case chaosLevel < 30:
		return vibe.Soft, "the energy is gentle here, soft vibes would fit"
	case vibeScore > 70:
		return vibe.Chaotic, "high energy detected, chaotic mode would slap"
	case vibeScore < 40:
		return vibe.Study, "things are pretty calm, study mode could keep it focused"
	}
	return current, "current vibe is a good match, no change needed"
}

func (h *Handler) AnalyzeVibe(c *gin.Context) {
	id := c.Query("conversationId")
	if id == "" {
		fail(c, apierr.InvalidRequest("conversationId query parameter is required"))
		return
	}

	rec, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, mapStoreErr(err))
		return
	}

	suggested, reasoning := suggestVibe(rec.CurrentVibe, rec.VibeScore, rec.Metadata.ChaosLevel)
	ok(c, vibeAnalysis{
		CurrentVibe:   rec.CurrentVibe,
		VibeScore:     rec.VibeScore,
		SuggestedVibe: suggested,
		Reasoning:     reasoning,
		ChaosLevel:    rec.Metadata.ChaosLevel,
	})
}

type setVibeReq struct {
	ConversationID string `json:"conversationId"`
	Vibe           string `json:"vibe"`
}

func (h *Handler) SetVibe(c *gin.Context) {
	var req setVibeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apierr.InvalidRequest("invalid json body"))
		return
	}
	if req.ConversationID == "" {
		fail(c, apierr.InvalidRequest("conversationId is required"))
		return
	}

	v, err := vibe.Parse(req.Vibe)
	if err != nil || req.Vibe == "" {
		fail(c, apierr.InvalidVibe(req.Vibe))
		return
	}

	rec, err := h.Store.SetVibe(c.Request.Context(), req.ConversationID, v)
	if err != nil {
		fail(c, mapStoreErr(err))
		return
	}
	ok(c, gin.H{"conversationId": rec.ID, "vibe": rec.CurrentVibe})
}
