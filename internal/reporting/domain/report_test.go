package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestInvoiceReport_AppliesInOrder(t *testing.T) {
	// ARRANGE
	id, vendor := uuid.New(), uuid.New()
	rep := NewInvoiceReport(StatusChange{
		InvoiceID: id, Status: StatusDraft, InvoiceNumber: "INV-1", VendorID: vendor,
		TotalAmount: amount("0"), Currency: "USD", OccurredOn: t0,
	}, t0)

	// ACT
	changed := rep.Apply(StatusChange{InvoiceID: id, Status: StatusApproved, TotalAmount: amount("110"), OccurredOn: t0.Add(time.Minute)}, t0)

	// ASSERT
	assert.True(t, changed)
	assert.Equal(t, StatusApproved, rep.Status)
	assert.Equal(t, "INV-1", rep.InvoiceNumber)
	assert.Equal(t, vendor, rep.VendorID)
	assert.True(t, rep.TotalAmount.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, t0.Add(time.Minute), rep.LastEventAt)
}

func TestInvoiceReport_ReplayIsNoop(t *testing.T) {
	change := StatusChange{InvoiceID: uuid.New(), Status: StatusApproved, TotalAmount: amount("50"), Currency: "USD", OccurredOn: t0}
	rep := NewInvoiceReport(change, t0)

	assert.False(t, rep.Apply(change, t0.Add(time.Hour)))
	assert.Equal(t, t0, rep.UpdatedAt)
}

func TestInvoiceReport_OlderEventDoesNotRegressStatus(t *testing.T) {
	// ARRANGE
	id := uuid.New()
	rep := NewInvoiceReport(StatusChange{InvoiceID: id, Status: StatusPaid, OccurredOn: t0.Add(time.Hour)}, t0)

	// ACT
	changed := rep.Apply(StatusChange{
		InvoiceID: id, Status: StatusDraft, InvoiceNumber: "INV-9", TotalAmount: amount("42"), Currency: "EUR", OccurredOn: t0,
	}, t0)

	// ASSERT
	assert.True(t, changed, "rellena los datos que faltaban")
	assert.Equal(t, StatusPaid, rep.Status)
	assert.Equal(t, "INV-9", rep.InvoiceNumber)
	assert.Equal(t, "EUR", rep.Currency)
	assert.True(t, rep.TotalAmount.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, t0.Add(time.Hour), rep.LastEventAt)
}

func TestSummarize(t *testing.T) {
	rows := []*InvoiceReport{
		{Status: StatusApproved, TotalAmount: decimal.RequireFromString("100.10")},
		{Status: StatusDraft, TotalAmount: decimal.Zero},
		{Status: StatusApproved, TotalAmount: decimal.RequireFromString("0.20")},
	}

	got := Summarize(rows)

	require.Len(t, got, 2)
	assert.Equal(t, StatusApproved, got[0].Status)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "100.3", got[0].TotalAmount.String())
	assert.Equal(t, StatusDraft, got[1].Status)
	assert.Equal(t, 1, got[1].Count)
	assert.Empty(t, Summarize(nil))
}
