package lorekeeper

import (
	"github.com/gin-gonic/gin"

	"github.com/wyrdlab/reverie/internal/lorekeeper/handler/middleware"
	v1 "github.com/wyrdlab/reverie/internal/lorekeeper/handler/v1"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	manager    *service.Manager
	authConfig *middleware.AuthConfig
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installMiddleware(g, deps)
	installController(g, deps)
}

func installMiddleware(g *gin.Engine, deps *routerDeps) {
	g.Use(middleware.CORS())
	if deps.authConfig != nil {
		g.Use(middleware.BearerAuth(deps.authConfig))
	}
}

func installController(g *gin.Engine, deps *routerDeps) {
	chatHandler := v1.NewChatHandler(deps.manager)
	sessionHandler := v1.NewSessionHandler(deps.manager)
	memoryHandler := v1.NewMemoryHandler(deps.manager)

	g.POST("/chat", chatHandler.Handle)
	g.GET("/sessions", sessionHandler.List)
	g.GET("/sessions/:id/history", sessionHandler.History)
	g.DELETE("/sessions/:id", sessionHandler.Delete)
	g.GET("/memory", memoryHandler.Get)
}
