package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados tal y como llegan en los eventos de facturas.
const (
	StatusDraft            = "Draft"
	StatusApproved         = "Approved"
	StatusRejected         = "Rejected"
	StatusPaid             = "Paid"
	StatusFlaggedForReview = "FlaggedForReview"
)

// InvoiceReport es la fila de proyección de una factura.
type InvoiceReport struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	VendorID      uuid.UUID       `json:"vendorId"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency,omitempty"`
	LastEventAt   time.Time       `json:"lastEventAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StatusChange es lo que un evento aporta a la proyección.
// Los campos vacíos no pisan lo que ya se conoce.
type StatusChange struct {
	InvoiceID     uuid.UUID
	Status        string
	InvoiceNumber string
	VendorID      uuid.UUID
	TotalAmount   *decimal.Decimal
	Currency      string
	OccurredOn    time.Time
}

// NewInvoiceReport crea la fila a partir del primer evento recibido, sea cual sea.
func NewInvoiceReport(c StatusChange, now time.Time) *InvoiceReport {
	r := &InvoiceReport{InvoiceID: c.InvoiceID, TotalAmount: decimal.Zero}
	r.Apply(c, now)
	return r
}

// Apply fusiona el cambio. El estado sólo avanza con eventos no anteriores al último
// aplicado, así que reaplicar o recibir desordenado deja la fila igual.
// Devuelve false si no cambió nada.
func (r *InvoiceReport) Apply(c StatusChange, now time.Time) bool {
	changed := false
	if c.InvoiceNumber != "" && r.InvoiceNumber == "" {
		r.InvoiceNumber, changed = c.InvoiceNumber, true
	}
	if c.VendorID != uuid.Nil && r.VendorID == uuid.Nil {
		r.VendorID, changed = c.VendorID, true
	}
	if c.Currency != "" && r.Currency == "" {
		r.Currency, changed = c.Currency, true
	}

	if r.Status == "" || !c.OccurredOn.Before(r.LastEventAt) {
		if c.Status != r.Status {
			r.Status, changed = c.Status, true
		}
		if c.TotalAmount != nil && !c.TotalAmount.Equal(r.TotalAmount) {
			r.TotalAmount, changed = *c.TotalAmount, true
		}
		if c.OccurredOn.After(r.LastEventAt) {
			r.LastEventAt, changed = c.OccurredOn, true
		}
	} else if c.TotalAmount != nil && r.TotalAmount.IsZero() {
		r.TotalAmount, changed = *c.TotalAmount, true
	}

	if changed {
		r.UpdatedAt = now.UTC()
	}
	return changed
}

// InvoiceSummary agrega las facturas de un estado.
type InvoiceSummary struct {
	Status      string          `json:"status"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Summarize agrupa por estado, ordenado por nombre de estado.
func Summarize(rows []*InvoiceReport) []InvoiceSummary {
	byStatus := map[string]*InvoiceSummary{}
	var order []string
	for _, r := range rows {
		s, ok := byStatus[r.Status]
		if !ok {
			s = &InvoiceSummary{Status: r.Status, TotalAmount: decimal.Zero}
			byStatus[r.Status] = s
			order = append(order, r.Status)
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(r.TotalAmount)
	}
	sort.Strings(order)

	out := make([]InvoiceSummary, 0, len(order))
	for _, status := range order {
		out = append(out, *byStatus[status])
	}
	return out
}
