// Package clock предоставляет источник текущего времени,
// который можно подменить в тестах.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

// Real часы на основе time.Now.
type Real struct{}

// Now возвращает текущее время в UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake часы с ручным управлением временем.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создает Fake, остановленные на моменте t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

// Now возвращает зафиксированное время.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает время вперёд на d.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
