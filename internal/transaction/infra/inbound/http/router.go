package http

import "github.com/gin-gonic/gin"

func RegisterTransactionRoutes(r *gin.Engine, handler *TransactionHandler) {
	transactions := r.Group("/transactions")
	{
		transactions.POST("/", handler.CreateTransaction)
		transactions.GET("/:id", handler.GetTransaction)
		transactions.DELETE("/:id", handler.CancelTransaction)
	}
}
