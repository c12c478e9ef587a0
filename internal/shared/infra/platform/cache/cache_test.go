package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGetExpire(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	// ACT
	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, 10*time.Second))

	// ASSERT
	var got map[string]int
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, got["a"])

	now = now.Add(11 * time.Second)
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expired keys are misses")
}

func TestInMemoryCache_SetNX(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, 0)
	defer c.Stop()

	ok, err := c.SetNX(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", "second", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	var v string
	_, _ = c.Get(ctx, "k", &v)
	assert.Equal(t, "first", v)

	require.NoError(t, c.Delete(ctx, "k"))
	hit, _ := c.Get(ctx, "k", &v)
	assert.False(t, hit)
}

func TestInbox_OverInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Hour, 0)
	inbox := NewInbox(c, time.Hour)
	id := uuid.New()

	seen, err := inbox.Seen(ctx, "reporting-queue", id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, inbox.Record(ctx, "reporting-queue", id, "InvoiceCreatedEvent"))
	require.NoError(t, inbox.Record(ctx, "reporting-queue", id, "InvoiceCreatedEvent"))

	seen, err = inbox.Seen(ctx, "reporting-queue", id)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = inbox.Seen(ctx, "audit-log-queue", id)
	require.NoError(t, err)
	assert.False(t, seen)
}

// Requiere un Redis real: INVOICEFLOW_TEST_REDIS=localhost:6379
func TestInbox_OverRedis(t *testing.T) {
	addr := os.Getenv("INVOICEFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("INVOICEFLOW_TEST_REDIS not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	inbox := NewInbox(NewRedisCache(client, time.Minute), time.Minute)
	id := uuid.New()
	require.NoError(t, inbox.Record(ctx, "payment-tracking-queue", id, "InvoiceApprovedEvent"))

	seen, err := inbox.Seen(ctx, "payment-tracking-queue", id)
	require.NoError(t, err)
	assert.True(t, seen)
}
