package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newDraft(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice("INV-001", uuid.New(), now, now.AddDate(0, 0, 30), "alice", "", now)
	require.NoError(t, err)
	return inv
}

func newPending(t *testing.T) *Invoice {
	t.Helper()
	inv := newDraft(t)
	_, err := inv.AddLineItem("Consulting", 2, decimal.RequireFromString("50.00"), "usd")
	require.NoError(t, err)
	require.NoError(t, inv.Submit())
	inv.ClearEvents()
	return inv
}

func TestNewInvoice_RaisesCreatedEvent(t *testing.T) {
	// ARRANGE
	vendor := uuid.New()

	// ACT
	inv, err := NewInvoice(" INV-9 ", vendor, now, now.AddDate(0, 0, 10), "alice", "", now)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, "INV-9", inv.InvoiceNumber)
	events := inv.PendingEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(InvoiceCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, InvoiceCreated, created.EventType())
	assert.Equal(t, inv.ID, created.InvoiceID)
	assert.Equal(t, vendor, created.VendorID)
	assert.True(t, created.TotalAmount.IsZero())
	assert.Equal(t, DefaultCurrency, created.Currency)
	assert.NotEqual(t, uuid.Nil, created.EventID)
}

func TestNewInvoice_Validation(t *testing.T) {
	cases := []struct {
		name   string
		number string
		vendor uuid.UUID
		due    time.Time
		by     string
	}{
		{"missing number", "", uuid.New(), now, "alice"},
		{"missing vendor", "INV-1", uuid.Nil, now, "alice"},
		{"due before issue", "INV-1", uuid.New(), now.AddDate(0, 0, -1), "alice"},
		{"missing creator", "INV-1", uuid.New(), now, " "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInvoice(tc.number, tc.vendor, now, tc.due, tc.by, "", now)
			assert.ErrorIs(t, err, ErrInvalidInvoice)
		})
	}
}

func TestNewInvoiceFromExtraction(t *testing.T) {
	// ARRANGE
	classification := uuid.New()

	// ACT
	inv, err := NewInvoiceFromExtraction("AI-12345678", uuid.New(), now, now.AddDate(0, 0, 30),
		decimal.RequireFromString("1250.50"), "eur", 0.9, "AI-Assistant", classification, now)

	// ASSERT
	require.NoError(t, err)
	require.NotNil(t, inv.ClassificationID)
	assert.Equal(t, classification, *inv.ClassificationID)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, "AI Extracted with 90% confidence", inv.Notes)
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("1250.50")))
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "AI Extracted Total", inv.LineItems[0].Description)

	events := inv.PendingEvents()
	require.Len(t, events, 1)
	extracted, ok := events[0].(InvoiceExtractedEvent)
	require.True(t, ok)
	assert.Equal(t, 0.9, extracted.ConfidenceScore)
	assert.True(t, extracted.TotalAmount.Equal(inv.TotalAmount))
}

func TestNewInvoiceFromExtraction_RejectsNegativeTotal(t *testing.T) {
	_, err := NewInvoiceFromExtraction("AI-1", uuid.New(), now, now, decimal.NewFromInt(-1), "USD", 0.5, "AI-Assistant", uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidInvoice)
}

func TestAddLineItem_RecalculatesTotalsWithTax(t *testing.T) {
	// ARRANGE
	inv := newDraft(t)

	// ACT
	_, err1 := inv.AddLineItem("Hosting", 2, decimal.RequireFromString("30.00"), "USD")
	_, err2 := inv.AddLineItem("Support", 1, decimal.RequireFromString("40.00"), "usd")

	// ASSERT
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "100", inv.SubTotal.String())
	assert.Equal(t, "10", inv.TaxAmount.String())
	assert.Equal(t, "110", inv.TotalAmount.String())
}

func TestAddLineItem_Validation(t *testing.T) {
	inv := newDraft(t)

	_, err := inv.AddLineItem("", 1, decimal.NewFromInt(1), "USD")
	assert.ErrorIs(t, err, ErrInvalidInvoice)
	_, err = inv.AddLineItem("x", 0, decimal.NewFromInt(1), "USD")
	assert.ErrorIs(t, err, ErrInvalidInvoice)
	_, err = inv.AddLineItem("x", 1, decimal.NewFromInt(-1), "USD")
	assert.ErrorIs(t, err, ErrInvalidInvoice)

	_, err = inv.AddLineItem("x", 1, decimal.NewFromInt(1), "USD")
	require.NoError(t, err)
	_, err = inv.AddLineItem("y", 1, decimal.NewFromInt(1), "EUR")
	assert.ErrorIs(t, err, ErrInvalidInvoice, "no se mezclan monedas")

	require.NoError(t, inv.Submit())
	_, err = inv.AddLineItem("z", 1, decimal.NewFromInt(1), "USD")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmit_RequiresLineItems(t *testing.T) {
	inv := newDraft(t)
	assert.ErrorIs(t, inv.Submit(), ErrInvalidInvoice)
}

func TestApprove_RaisesApprovedEvent(t *testing.T) {
	// ARRANGE
	inv := newPending(t)

	// ACT
	err := inv.Approve("bob", now)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, inv.Status)
	assert.Equal(t, "bob", inv.ApprovedBy)
	require.NotNil(t, inv.ApprovedAt)

	events := inv.PendingEvents()
	require.Len(t, events, 1)
	approved := events[0].(InvoiceApprovedEvent)
	assert.Equal(t, inv.ID, approved.InvoiceID)
	assert.Equal(t, inv.VendorID, approved.VendorID)
	assert.Equal(t, "110", approved.TotalAmount.String())
	assert.Equal(t, "USD", approved.Currency)
	assert.Equal(t, inv.DueDate, approved.DueDate)
}

func TestApprovedEvent_WireFormat(t *testing.T) {
	inv := newPending(t)
	require.NoError(t, inv.Approve("bob", now))

	raw, err := json.Marshal(inv.PendingEvents()[0])
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))
	for _, key := range []string{"eventId", "occurredOn", "invoiceId", "vendorId", "totalAmount", "currency", "dueDate", "approvedBy"} {
		assert.Contains(t, wire, key)
	}
	assert.Equal(t, "110", wire["totalAmount"])
}

func TestTransitions(t *testing.T) {
	paymentID := uuid.New()
	cases := []struct {
		name    string
		prepare func(inv *Invoice)
		act     func(inv *Invoice) error
		want    InvoiceStatus
		wantErr error
	}{
		{"approve from draft", func(*Invoice) {}, func(inv *Invoice) error { return inv.Approve("bob", now) }, StatusDraft, ErrInvalidTransition},
		{"reject pending", func(inv *Invoice) { inv.Status = StatusPending }, func(inv *Invoice) error { return inv.Reject("dup", "bob", now) }, StatusRejected, nil},
		{"reject without reason", func(inv *Invoice) { inv.Status = StatusPending }, func(inv *Invoice) error { return inv.Reject("", "bob", now) }, StatusPending, ErrInvalidInvoice},
		{"pay approved", func(inv *Invoice) { inv.Status = StatusApproved }, func(inv *Invoice) error { return inv.MarkAsPaid(paymentID, now) }, StatusPaid, nil},
		{"pay pending", func(inv *Invoice) { inv.Status = StatusPending }, func(inv *Invoice) error { return inv.MarkAsPaid(paymentID, now) }, StatusPending, ErrInvalidTransition},
		{"flag approved", func(inv *Invoice) { inv.Status = StatusApproved }, func(inv *Invoice) error { return inv.FlagForReview("fraud", "ai", now) }, StatusFlaggedForReview, nil},
		{"flag paid", func(inv *Invoice) { inv.Status = StatusPaid }, func(inv *Invoice) error { return inv.FlagForReview("fraud", "ai", now) }, StatusPaid, ErrInvalidTransition},
		{"flag cancelled", func(inv *Invoice) { inv.Status = StatusCancelled }, func(inv *Invoice) error { return inv.FlagForReview("fraud", "ai", now) }, StatusCancelled, ErrInvalidTransition},
		{"cancel approved", func(inv *Invoice) { inv.Status = StatusApproved }, func(inv *Invoice) error { return inv.Cancel() }, StatusCancelled, nil},
		{"cancel paid", func(inv *Invoice) { inv.Status = StatusPaid }, func(inv *Invoice) error { return inv.Cancel() }, StatusPaid, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// ARRANGE
			inv := newDraft(t)
			inv.ClearEvents()
			tc.prepare(inv)

			// ACT
			err := tc.act(inv)

			// ASSERT
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, inv.PendingEvents(), "una transición fallida no levanta eventos")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, inv.Status)
		})
	}
}

func TestFlagForReview_AppendsNote(t *testing.T) {
	inv := newPending(t)
	inv.Notes = "original"

	require.NoError(t, inv.FlagForReview("AI detected potential fraud: duplicated", "AI-Fraud-Detection", now))

	assert.Equal(t, "original\n[FLAGGED]: AI detected potential fraud: duplicated by AI-Fraud-Detection", inv.Notes)
	flagged := inv.PendingEvents()[0].(InvoiceFlaggedForReviewEvent)
	assert.Equal(t, "AI-Fraud-Detection", flagged.FlaggedBy)
}

func TestCriteria_ToConditions(t *testing.T) {
	start := now
	c := DueDateRangeCriteria{Start: &start}
	conds := c.ToConditions()
	require.Len(t, conds, 1)
	assert.Equal(t, "due_date", conds[0].Field)

	assert.Equal(t, "%INV%", NumberLikeCriteria{Number: "INV"}.ToConditions()[0].Value)
	assert.Equal(t, "invoice:id:"+uuid.Nil.String(), InvoiceCacheKeyByID(uuid.Nil))
}
