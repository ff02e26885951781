package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var vibeCheckLines = []string{
	"vibes are immaculate rn",
	"the energy in here? unmatched",
	"running on chaos and good intentions",
	"status: thriving (allegedly)",
	"all systems vibing",
}

// Health reports ok, degraded or down. It never returns an error status;
// a panic anywhere below still produces a down report.
func (h *Handler) Health(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.Log.Error().Interface("panic", r).Msg("health check panicked")
			if !c.Writer.Written() {
				c.JSON(http.StatusOK, gin.H{
					"status":    "down",
					"vibeCheck": "everything is on fire but we're vibing",
					"timestamp": time.Now().UTC(),
				})
			}
		}
	}()

	ctx := c.Request.Context()
	status := "ok"

	upstream := gin.H{"reachable": true}
	if err := h.Upstream.Healthy(ctx); err != nil {
		status = "degraded"
		upstream = gin.H{"reachable": false, "error": err.Error()}
	}

	body := gin.H{
		"status":    status,
		"upstream":  upstream,
		"vibeCheck": h.Sampler.Pick(vibeCheckLines),
		"timestamp": time.Now().UTC(),
	}

	stats, err := h.Store.Stats(ctx)
	if err != nil {
		body["status"] = "down"
	} else {
		body["stats"] = stats
	}

	c.JSON(http.StatusOK, body)
}
