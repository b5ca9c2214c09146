package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/common"
	"github.com/airu-app/supportchat/internal/config"
	"github.com/airu-app/supportchat/internal/httpapi/handlers"
	"github.com/airu-app/supportchat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, repo *chat.Repo, gen ai.Generator, trigger chat.AnalysisTrigger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(cfg, repo, gen, trigger)

	r.GET("/ping", h.Ping)
	r.GET("/departments", h.ListDepartments)
	r.POST("/chat/sessions", h.CreateChatSession)
	r.POST("/analysis/trigger", h.TriggerAnalysis)

	authGroup := r.Group("/")
	authGroup.Use(middleware.SessionAuth(cfg.SessionSecret))
	authGroup.POST("/chat/messages/stream", h.SendChatMessageStream)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.POST("/chat/sessions/:session_id/end", h.EndChatSession)

	return r
}
