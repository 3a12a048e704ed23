package http

import "github.com/gin-gonic/gin"

func RegisterMessageRoutes(r *gin.Engine, handler *MessageHandler) {
	messages := r.Group("/messages")
	{
		messages.POST("/", handler.CreateMessage)
		messages.GET("/:id", handler.GetMessage)
		messages.DELETE("/:id", handler.CancelMessage)
	}
}
