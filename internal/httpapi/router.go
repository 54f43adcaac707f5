package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suPer8Hu/swaif-depths/internal/common"
	"github.com/suPer8Hu/swaif-depths/internal/httpapi/handlers"
	"github.com/suPer8Hu/swaif-depths/internal/httpapi/middleware"
	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

const (
	ScopeIngest  = "ingest"
	ScopeGrouper = "grouper"
	ScopeRead    = "read"
	ScopeAdmin   = "admin"
)

func NewRouter(h *handlers.Handler, jwtSecret string, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))

	// ingestion
	authGroup.POST("/messages", middleware.RequireScope(ScopeIngest), h.IngestMessages)

	// grouping
	authGroup.POST("/grouper/run", middleware.RequireScope(ScopeGrouper), h.RunGrouper)
	authGroup.GET("/grouper/runs", middleware.RequireScope(ScopeRead), h.ListGroupRuns)
	authGroup.GET("/grouper/runs/:run_id", middleware.RequireScope(ScopeRead), h.GetGroupRun)
	authGroup.GET("/stats", middleware.RequireScope(ScopeRead), h.Stats)

	// history
	authGroup.GET("/leads/:phone/history", middleware.RequireScope(ScopeRead), h.LeadHistory)
	authGroup.GET("/leads/:phone/conversations", middleware.RequireScope(ScopeRead), h.LeadConversations)
	authGroup.GET("/conversations/:conversation_id", middleware.RequireScope(ScopeRead), h.GetConversation)
	authGroup.GET("/conversations/:conversation_id/messages", middleware.RequireScope(ScopeRead), h.ConversationMessages)
	authGroup.POST("/history/reset", middleware.RequireScope(ScopeAdmin), h.ResetHistory)

	return r
}
