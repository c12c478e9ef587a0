package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/invoiceflow/internal/reporting/application"
	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
	"github.com/davicafu/invoiceflow/pkg/utils"
)

var reportErrors = []utils.ErrorStatus{
	{Err: domain.ErrReportNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrInvalidReportQuery, Status: http.StatusBadRequest},
	{Err: domain.ErrAnalyticsDisabled, Status: http.StatusServiceUnavailable},
}

type ReportHandler struct {
	service *application.ReportService
}

func NewReportHandler(service *application.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// InvoiceSummary endpoint GET /reports/invoices
func (h *ReportHandler) InvoiceSummary(c *gin.Context) {
	summary, err := h.service.InvoiceSummary(c.Request.Context())
	if err != nil {
		utils.SendDomainError(c, err, reportErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, summary)
}

// ListInvoiceReports endpoint GET /reports/invoices/rows?status=&limit=&offset=
func (h *ReportHandler) ListInvoiceReports(c *gin.Context) {
	var page sharedQuery.OffsetPagination
	page.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	page.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := h.service.ListInvoiceReports(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		utils.SendDomainError(c, err, reportErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rows)
}

// GetInvoiceReport endpoint GET /reports/invoices/:id
func (h *ReportHandler) GetInvoiceReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid invoice id")
		return
	}
	rep, err := h.service.GetInvoiceReport(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err, reportErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rep)
}

// EventCounts endpoint GET /reports/events?from=&to=
// Sin from/to devuelve las últimas 24 horas.
func (h *ReportHandler) EventCounts(c *gin.Context) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid from")
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid to")
			return
		}
		to = t
	}

	counts, err := h.service.EventCounts(c.Request.Context(), from, to)
	if err != nil {
		utils.SendDomainError(c, err, reportErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, counts)
}
