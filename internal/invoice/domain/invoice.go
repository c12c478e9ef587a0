package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

type InvoiceStatus string

const (
	StatusDraft            InvoiceStatus = "Draft"
	StatusPending          InvoiceStatus = "Pending"
	StatusApproved         InvoiceStatus = "Approved"
	StatusRejected         InvoiceStatus = "Rejected"
	StatusPaid             InvoiceStatus = "Paid"
	StatusOverdue          InvoiceStatus = "Overdue"
	StatusCancelled        InvoiceStatus = "Cancelled"
	StatusFlaggedForReview InvoiceStatus = "FlaggedForReview"
)

const DefaultCurrency = "USD"

// TaxRate es el impuesto fijo aplicado sobre el subtotal.
var TaxRate = decimal.RequireFromString("0.10")

type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Invoice es el agregado raíz: todo cambio de estado pasa por sus métodos.
type Invoice struct {
	sharedDomain.AggregateRoot `json:"-"`

	ID               uuid.UUID       `json:"id"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	VendorID         uuid.UUID       `json:"vendorId"`
	ClassificationID *uuid.UUID      `json:"classificationId,omitempty"`
	Status           InvoiceStatus   `json:"status"`
	IssueDate        time.Time       `json:"issueDate"`
	DueDate          time.Time       `json:"dueDate"`
	Currency         string          `json:"currency"`
	SubTotal         decimal.Decimal `json:"subTotal"`
	TaxAmount        decimal.Decimal `json:"taxAmount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Notes            string          `json:"notes,omitempty"`
	RejectionReason  string          `json:"rejectionReason,omitempty"`
	CreatedBy        string          `json:"createdBy"`
	CreatedAt        time.Time       `json:"createdAt"`
	ApprovedAt       *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy       string          `json:"approvedBy,omitempty"`
	LineItems        []LineItem      `json:"lineItems"`
	// Version se usa para el bloqueo optimista.
	Version int `json:"version"`
}

// NewInvoice crea una factura en borrador y levanta InvoiceCreatedEvent.
func NewInvoice(number string, vendorID uuid.UUID, issueDate, dueDate time.Time, createdBy, notes string, now time.Time) (*Invoice, error) {
	inv, err := newInvoice(number, vendorID, issueDate, dueDate, createdBy, notes, now)
	if err != nil {
		return nil, err
	}

	inv.Raise(InvoiceCreatedEvent{
		EventBase:     sharedDomain.NewEventBase(now),
		InvoiceID:     inv.ID,
		VendorID:      vendorID,
		InvoiceNumber: inv.InvoiceNumber,
		TotalAmount:   decimal.Zero,
		Currency:      DefaultCurrency,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
	})
	return inv, nil
}

// NewInvoiceFromExtraction crea el borrador a partir de una clasificación de la IA.
// El total extraído entra como única línea y es el total del documento.
func NewInvoiceFromExtraction(
	number string,
	vendorID uuid.UUID,
	issueDate, dueDate time.Time,
	total decimal.Decimal,
	currency string,
	confidence float64,
	extractedBy string,
	classificationID uuid.UUID,
	now time.Time,
) (*Invoice, error) {
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidInvoice)
	}
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("AI Extracted with %.0f%% confidence", confidence*100)
	inv, err := newInvoice(number, vendorID, issueDate, dueDate, extractedBy, notes, now)
	if err != nil {
		return nil, err
	}

	cid := classificationID
	inv.ClassificationID = &cid
	inv.Currency = currency
	inv.LineItems = []LineItem{{
		ID:          uuid.New(),
		Description: "AI Extracted Total",
		Quantity:    1,
		UnitPrice:   total,
		Currency:    currency,
	}}
	inv.SubTotal = total
	inv.TaxAmount = decimal.Zero
	inv.TotalAmount = total

	inv.Raise(InvoiceExtractedEvent{
		EventBase:       sharedDomain.NewEventBase(now),
		InvoiceID:       inv.ID,
		VendorID:        vendorID,
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     total,
		Currency:        currency,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		ConfidenceScore: confidence,
	})
	return inv, nil
}

func newInvoice(number string, vendorID uuid.UUID, issueDate, dueDate time.Time, createdBy, notes string, now time.Time) (*Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("%w: invoice number is required", ErrInvalidInvoice)
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, fmt.Errorf("%w: created by is required", ErrInvalidInvoice)
	}
	if vendorID == uuid.Nil {
		return nil, fmt.Errorf("%w: vendor is required", ErrInvalidInvoice)
	}
	if dueDate.Before(issueDate) {
		return nil, fmt.Errorf("%w: due date cannot be before issue date", ErrInvalidInvoice)
	}

	return &Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		VendorID:      vendorID,
		Status:        StatusDraft,
		IssueDate:     issueDate.UTC(),
		DueDate:       dueDate.UTC(),
		Currency:      DefaultCurrency,
		SubTotal:      decimal.Zero,
		TaxAmount:     decimal.Zero,
		TotalAmount:   decimal.Zero,
		Notes:         notes,
		CreatedBy:     createdBy,
		CreatedAt:     now.UTC(),
		LineItems:     []LineItem{},
	}, nil
}

// AddLineItem sólo se permite en borrador. Recalcula los totales.
func (i *Invoice) AddLineItem(description string, quantity int, unitPrice decimal.Decimal, currency string) (LineItem, error) {
	if err := i.ensureStatus(StatusDraft, "add line items"); err != nil {
		return LineItem{}, err
	}
	if strings.TrimSpace(description) == "" {
		return LineItem{}, fmt.Errorf("%w: description is required", ErrInvalidInvoice)
	}
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInvoice)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInvoice)
	}
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return LineItem{}, err
	}
	if len(i.LineItems) > 0 && i.LineItems[0].Currency != currency {
		return LineItem{}, fmt.Errorf("%w: cannot mix currencies %s and %s", ErrInvalidInvoice, i.LineItems[0].Currency, currency)
	}

	item := LineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Currency:    currency,
	}
	i.LineItems = append(i.LineItems, item)
	i.recalculateTotals()
	return item, nil
}

func (i *Invoice) recalculateTotals() {
	currency := DefaultCurrency
	if len(i.LineItems) > 0 {
		currency = i.LineItems[0].Currency
	}
	sub := decimal.Zero
	for _, li := range i.LineItems {
		sub = sub.Add(li.Total())
	}
	i.Currency = currency
	i.SubTotal = sub
	i.TaxAmount = sub.Mul(TaxRate)
	i.TotalAmount = sub.Add(i.TaxAmount)
}

// Submit pasa de Draft a Pending. Exige al menos una línea.
func (i *Invoice) Submit() error {
	if err := i.ensureStatus(StatusDraft, "submit"); err != nil {
		return err
	}
	if len(i.LineItems) == 0 {
		return fmt.Errorf("%w: cannot submit invoice without line items", ErrInvalidInvoice)
	}
	i.Status = StatusPending
	return nil
}

func (i *Invoice) Approve(approvedBy string, now time.Time) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("%w: approved by is required", ErrInvalidInvoice)
	}
	if err := i.ensureStatus(StatusPending, "approve"); err != nil {
		return err
	}

	at := now.UTC()
	i.Status = StatusApproved
	i.ApprovedAt = &at
	i.ApprovedBy = approvedBy

	i.Raise(InvoiceApprovedEvent{
		EventBase:   sharedDomain.NewEventBase(now),
		InvoiceID:   i.ID,
		VendorID:    i.VendorID,
		TotalAmount: i.TotalAmount,
		Currency:    i.Currency,
		DueDate:     i.DueDate,
		ApprovedBy:  approvedBy,
	})
	return nil
}

func (i *Invoice) Reject(reason, rejectedBy string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrInvalidInvoice)
	}
	if strings.TrimSpace(rejectedBy) == "" {
		return fmt.Errorf("%w: rejected by is required", ErrInvalidInvoice)
	}
	if err := i.ensureStatus(StatusPending, "reject"); err != nil {
		return err
	}

	i.Status = StatusRejected
	i.RejectionReason = reason

	i.Raise(InvoiceRejectedEvent{
		EventBase:  sharedDomain.NewEventBase(now),
		InvoiceID:  i.ID,
		Reason:     reason,
		RejectedBy: rejectedBy,
	})
	return nil
}

func (i *Invoice) MarkAsPaid(paymentID uuid.UUID, now time.Time) error {
	if err := i.ensureStatus(StatusApproved, "mark as paid"); err != nil {
		return err
	}

	i.Status = StatusPaid
	i.Raise(InvoiceMarkedAsPaidEvent{
		EventBase: sharedDomain.NewEventBase(now),
		InvoiceID: i.ID,
		PaymentID: paymentID,
		PaidDate:  now.UTC(),
	})
	return nil
}

// FlagForReview no se permite sobre facturas pagadas o canceladas.
func (i *Invoice) FlagForReview(reason, flaggedBy string, now time.Time) error {
	if i.Status == StatusPaid || i.Status == StatusCancelled {
		return fmt.Errorf("%w: cannot flag invoice in %s status", ErrInvalidTransition, i.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidInvoice)
	}

	i.Status = StatusFlaggedForReview
	i.Notes = strings.TrimPrefix(fmt.Sprintf("%s\n[FLAGGED]: %s by %s", i.Notes, reason, flaggedBy), "\n")

	i.Raise(InvoiceFlaggedForReviewEvent{
		EventBase: sharedDomain.NewEventBase(now),
		InvoiceID: i.ID,
		Reason:    reason,
		FlaggedBy: flaggedBy,
	})
	return nil
}

func (i *Invoice) Cancel() error {
	if i.Status == StatusPaid {
		return fmt.Errorf("%w: cannot cancel a paid invoice", ErrInvalidTransition)
	}
	i.Status = StatusCancelled
	return nil
}

func (i *Invoice) ensureStatus(expected InvoiceStatus, action string) error {
	if i.Status != expected {
		return fmt.Errorf("%w: cannot %s when invoice is in %s status, expected %s",
			ErrInvalidTransition, action, i.Status, expected)
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency code must have 3 letters", ErrInvalidInvoice)
	}
	return currency, nil
}
