package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/invoiceflow/internal/payment/application"
	paymentDomain "github.com/davicafu/invoiceflow/internal/payment/domain"
	"github.com/davicafu/invoiceflow/pkg/utils"
)

var paymentErrors = []utils.ErrorStatus{
	{Err: paymentDomain.ErrPaymentNotFound, Status: http.StatusNotFound},
	{Err: paymentDomain.ErrInvalidPayment, Status: http.StatusBadRequest},
	{Err: paymentDomain.ErrInvalidTransition, Status: http.StatusConflict},
	{Err: paymentDomain.ErrConcurrentUpdate, Status: http.StatusConflict},
	{Err: paymentDomain.ErrPaymentAlreadyExists, Status: http.StatusConflict},
}

type PaymentHandler struct {
	service *application.PaymentService
}

func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// SchedulePayment endpoint POST /payments
func (h *PaymentHandler) SchedulePayment(c *gin.Context) {
	var req struct {
		InvoiceID     uuid.UUID       `json:"invoiceId" binding:"required"`
		VendorID      uuid.UUID       `json:"vendorId"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency" binding:"required"`
		ScheduledDate time.Time       `json:"scheduledDate" binding:"required"`
		CreatedBy     string          `json:"createdBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	payment, err := h.service.SchedulePayment(c.Request.Context(), application.SchedulePaymentCommand{
		InvoiceID:     req.InvoiceID,
		VendorID:      req.VendorID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		ScheduledDate: req.ScheduledDate,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		utils.SendDomainError(c, err, paymentErrors...)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, payment)
}

// GetPayment endpoint GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.service.GetPayment(c.Request.Context(), id))
}

// GetByInvoice endpoint GET /payments?invoiceId=
func (h *PaymentHandler) GetByInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Query("invoiceId"))
	if err != nil {
		utils.SendBadRequest(c, "invalid invoiceId")
		return
	}
	h.respond(c)(h.service.GetByInvoiceID(c.Request.Context(), id))
}

// StartProcessing endpoint POST /payments/:id/process
func (h *PaymentHandler) StartProcessing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.service.StartProcessing(c.Request.Context(), id))
}

// Complete endpoint POST /payments/:id/complete
func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TransactionReference string `json:"transactionReference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.CompletePayment(c.Request.Context(), id, req.TransactionReference))
}

// Fail endpoint POST /payments/:id/fail
func (h *PaymentHandler) Fail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.FailPayment(c.Request.Context(), id, req.Reason))
}

// Cancel endpoint POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.service.CancelPayment(c.Request.Context(), id))
}

// Reschedule endpoint POST /payments/:id/reschedule
func (h *PaymentHandler) Reschedule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ScheduledDate time.Time `json:"scheduledDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	h.respond(c)(h.service.ReschedulePayment(c.Request.Context(), id, req.ScheduledDate))
}

func (h *PaymentHandler) respond(c *gin.Context) func(*paymentDomain.Payment, error) {
	return func(p *paymentDomain.Payment, err error) {
		if err != nil {
			utils.SendDomainError(c, err, paymentErrors...)
			return
		}
		utils.SendSuccess(c, http.StatusOK, p)
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.SendBadRequest(c, "invalid payment "+param)
		return uuid.Nil, false
	}
	return id, true
}
