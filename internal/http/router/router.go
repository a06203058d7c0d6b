package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"parley.app/switchboard/internal/http/handler"
	"parley.app/switchboard/internal/service"
)

type RouterConfig struct {
	Queue             handler.MessageQueue
	KeepaliveInterval time.Duration
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		sessionHandler := handler.NewSessionHandler(services.Sessions())
		messageHandler := handler.NewMessageHandler(cfg.Queue, services.Sessions(), cfg.KeepaliveInterval)
		SessionRouter(v1.Group("/sessions"), sessionHandler, messageHandler)
	}
}
