package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ReturnsLastErrorWithoutTrailingWait(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), 3, 50*time.Millisecond, func(int) error {
		calls++
		return errors.New("still missing")
	})

	assert.EqualError(t, err, "still missing")
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), 140*time.Millisecond, "only two waits between three attempts")
}

func TestRetry_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 5, time.Hour, func(int) error { return errors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeEvent(t *testing.T) {
	type approved struct {
		InvoiceID string `json:"invoiceId"`
	}
	evt, err := DecodeEvent[approved]([]byte(`{"invoiceId":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", evt.InvoiceID)

	_, err = DecodeEvent[approved]([]byte(`{"invoiceId":`))
	assert.Error(t, err)
}
