package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chaobytes/chaogpt/internal/httpapi/handlers"
	"github.com/chaobytes/chaogpt/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, corsOrigins []string, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recovery(log))

	corsCfg := cors.DefaultConfig()
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = corsOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Session-Id")
	corsCfg.ExposeHeaders = []string{
		"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		"X-Conversation-Id", "X-Vibe", "X-Request-Id",
	}
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "invalid_request", "message": "route not found"}})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": gin.H{"code": "invalid_request", "message": "method not allowed"}})
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/chat", h.Chat)
		api.GET("/chat", h.ChatUsage)

		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.CreateConversation)
		api.DELETE("/conversations", h.DeleteAllConversations)
		api.POST("/conversations/import", h.ImportConversation)
		api.GET("/conversations/:id", h.GetConversation)
		api.PATCH("/conversations/:id", h.UpdateConversation)
		api.DELETE("/conversations/:id", h.DeleteConversation)

		api.GET("/vibe", h.AnalyzeVibe)
		api.POST("/vibe", h.SetVibe)

		api.GET("/health", h.Health)
	}

	return r
}
