package domain

import (
	"sync"
	"time"
)

// Clock abstrae la hora para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

// SystemClock devuelve la hora del sistema en UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock es un reloj manual, útil en tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now.UTC()}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance mueve el reloj hacia delante.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	_ Clock = SystemClock{}
	_ Clock = (*FixedClock)(nil)
)
