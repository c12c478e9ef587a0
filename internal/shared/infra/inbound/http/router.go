package http

import "github.com/gin-gonic/gin"

// RegisterOpsRoutes registra la superficie de operación.
func RegisterOpsRoutes(r gin.IRouter, handler *OpsHandler) {
	r.GET("/health", handler.Health)
	r.GET("/metrics", handler.Metrics())
	r.GET("/outbox", handler.OutboxStatus)
	r.GET("/outbox/:module", handler.OutboxRecords)
	r.GET("/dead-letters", handler.DeadLetters)
}
