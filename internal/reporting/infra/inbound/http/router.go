package http

import "github.com/gin-gonic/gin"

// RegisterReportRoutes registra las rutas de informes.
func RegisterReportRoutes(r gin.IRouter, handler *ReportHandler) {
	reports := r.Group("/reports")
	{
		reports.GET("/invoices", handler.InvoiceSummary)
		reports.GET("/invoices/rows", handler.ListInvoiceReports)
		reports.GET("/invoices/:id", handler.GetInvoiceReport)
		reports.GET("/events", handler.EventCounts)
	}
}
