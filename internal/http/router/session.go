package router

import (
	"github.com/gin-gonic/gin"

	"parley.app/switchboard/internal/http/handler"
)

func SessionRouter(rg *gin.RouterGroup, sessions *handler.SessionHandler, messages *handler.MessageHandler) {
	rg.GET("", sessions.List)
	rg.POST("", sessions.Create)
	rg.GET("/:id", sessions.GetByID)
	rg.PATCH("/:id", sessions.Update)
	rg.DELETE("/:id", sessions.Delete)
	rg.GET("/:id/history", sessions.History)
	rg.POST("/:id/messages", messages.Send)
	rg.GET("/:id/events", messages.Events)
}
