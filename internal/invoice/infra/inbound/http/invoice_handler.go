package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/invoiceflow/internal/invoice/application"
	invoiceDomain "github.com/davicafu/invoiceflow/internal/invoice/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
	"github.com/davicafu/invoiceflow/pkg/utils"
)

var invoiceErrors = []utils.ErrorStatus{
	{Err: invoiceDomain.ErrInvoiceNotFound, Status: http.StatusNotFound},
	{Err: invoiceDomain.ErrInvalidInvoice, Status: http.StatusBadRequest},
	{Err: invoiceDomain.ErrInvalidTransition, Status: http.StatusConflict},
	{Err: invoiceDomain.ErrConcurrentUpdate, Status: http.StatusConflict},
	{Err: invoiceDomain.ErrInvoiceAlreadyExists, Status: http.StatusConflict},
}

// InvoiceHandler expone los casos de uso de facturas por HTTP.
type InvoiceHandler struct {
	service *application.InvoiceService
}

func NewInvoiceHandler(service *application.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

type lineItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

func (r lineItemRequest) input() application.LineItemInput {
	return application.LineItemInput{
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Currency:    r.Currency,
	}
}

// CreateInvoice endpoint POST /invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req struct {
		InvoiceNumber string            `json:"invoiceNumber" binding:"required"`
		VendorID      uuid.UUID         `json:"vendorId" binding:"required"`
		IssueDate     time.Time         `json:"issueDate" binding:"required"`
		DueDate       time.Time         `json:"dueDate" binding:"required"`
		CreatedBy     string            `json:"createdBy" binding:"required"`
		Notes         string            `json:"notes"`
		LineItems     []lineItemRequest `json:"lineItems"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	cmd := application.CreateInvoiceCommand{
		InvoiceNumber: req.InvoiceNumber,
		VendorID:      req.VendorID,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		CreatedBy:     req.CreatedBy,
		Notes:         req.Notes,
	}
	for _, li := range req.LineItems {
		cmd.LineItems = append(cmd.LineItems, li.input())
	}

	inv, err := h.service.CreateInvoice(c.Request.Context(), cmd)
	if err != nil {
		utils.SendDomainError(c, err, invoiceErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, inv)
}

// GetInvoice endpoint GET /invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		utils.SendDomainError(c, err, invoiceErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, inv)
}

// ListInvoices endpoint GET /invoices?status=&vendorId=&number=&dueFrom=&dueTo=&limit=&offset=&sort=&desc=
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var f application.InvoiceFilter

	if s := c.Query("status"); s != "" {
		status := invoiceDomain.InvoiceStatus(s)
		f.Status = &status
	}
	if v := c.Query("vendorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.SendBadRequest(c, "invalid vendorId")
			return
		}
		f.VendorID = &id
	}
	f.Number = c.Query("number")

	var err error
	if f.DueFrom, err = parseDate(c.Query("dueFrom")); err != nil {
		utils.SendBadRequest(c, "invalid dueFrom")
		return
	}
	if f.DueTo, err = parseDate(c.Query("dueTo")); err != nil {
		utils.SendBadRequest(c, "invalid dueTo")
		return
	}

	f.Pagination.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Pagination.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	f.Sort = sharedQuery.Sort{Field: c.Query("sort"), Desc: c.Query("desc") == "true"}

	invoices, err := h.service.ListInvoices(c.Request.Context(), f)
	if err != nil {
		utils.SendDomainError(c, err, invoiceErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusOK, invoices)
}

// AddLineItem endpoint POST /invoices/:id/line-items
func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req lineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.AddLineItem(c.Request.Context(), id, req.input()))
}

// Submit endpoint POST /invoices/:id/submit
func (h *InvoiceHandler) Submit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.Submit(c.Request.Context(), id))
}

// Approve endpoint POST /invoices/:id/approve
func (h *InvoiceHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		ApprovedBy string `json:"approvedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.Approve(c.Request.Context(), id, req.ApprovedBy))
}

// Reject endpoint POST /invoices/:id/reject
func (h *InvoiceHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Reason     string `json:"reason" binding:"required"`
		RejectedBy string `json:"rejectedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.Reject(c.Request.Context(), id, req.Reason, req.RejectedBy))
}

// Flag endpoint POST /invoices/:id/flag
func (h *InvoiceHandler) Flag(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Reason    string `json:"reason" binding:"required"`
		FlaggedBy string `json:"flaggedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.Flag(c.Request.Context(), id, req.Reason, req.FlaggedBy))
}

// Cancel endpoint POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.Cancel(c.Request.Context(), id))
}

func (h *InvoiceHandler) respond(c *gin.Context) func(*invoiceDomain.Invoice, error) {
	return func(inv *invoiceDomain.Invoice, err error) {
		if err != nil {
			utils.SendDomainError(c, err, invoiceErrors...)
			return
		}
		utils.SendSuccess(c, http.StatusOK, inv)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid invoice id")
		return uuid.Nil, false
	}
	return id, true
}

// parseDate acepta RFC3339 o una fecha simple (2006-01-02).
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	_, err := time.Parse(time.RFC3339, raw)
	return nil, err
}
