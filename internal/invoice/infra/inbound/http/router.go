package http

import "github.com/gin-gonic/gin"

// RegisterInvoiceRoutes registra las rutas HTTP del módulo de facturas.
func RegisterInvoiceRoutes(r gin.IRouter, handler *InvoiceHandler) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", handler.CreateInvoice)
		invoices.GET("", handler.ListInvoices)
		invoices.GET("/:id", handler.GetInvoice)
		invoices.POST("/:id/line-items", handler.AddLineItem)
		invoices.POST("/:id/submit", handler.Submit)
		invoices.POST("/:id/approve", handler.Approve)
		invoices.POST("/:id/reject", handler.Reject)
		invoices.POST("/:id/flag", handler.Flag)
		invoices.POST("/:id/cancel", handler.Cancel)
	}
}
