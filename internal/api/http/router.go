package http

import (
	"github.com/EternisAI/blinkup-bridge/internal/api/http/handler"
	"github.com/EternisAI/blinkup-bridge/internal/api/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Coordinator handler.Coordinator
}

func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Coordinator)
	engine.GET("/health", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	blinkupHandler := handler.NewBlinkUpHandler(srvs.Coordinator)
	group := engine.Group("/blinkup")
	if cfg.BridgeAPIKey != "" {
		group.Use(middleware.BridgeKeyAuth(cfg.BridgeAPIKey))
	}
	group.POST("/start", blinkupHandler.Start)
	group.POST("/abort", blinkupHandler.Abort)
	group.POST("/clear", blinkupHandler.Clear)
	group.GET("/status", blinkupHandler.Status)
}
