package http

import "github.com/gin-gonic/gin"

// RegisterPaymentRoutes registra las rutas HTTP del módulo de pagos.
func RegisterPaymentRoutes(r gin.IRouter, handler *PaymentHandler) {
	payments := r.Group("/payments")
	{
		payments.POST("", handler.SchedulePayment)
		payments.GET("/:id", handler.GetPayment)
		payments.GET("", handler.GetByInvoice)
		payments.POST("/:id/process", handler.StartProcessing)
		payments.POST("/:id/complete", handler.Complete)
		payments.POST("/:id/fail", handler.Fail)
		payments.POST("/:id/cancel", handler.Cancel)
		payments.POST("/:id/reschedule", handler.Reschedule)
	}
}
