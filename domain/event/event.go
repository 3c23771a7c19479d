package event

import (
	"sync"
	"time"
)

type Type string

// Event is a technical notification routed through the telemetry channel.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

func New(eventType Type, payload any) Event {
	return Event{Type: eventType, CreatedAt: time.Now().UTC(), Payload: payload}
}

// Counter counts events per type. Safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	counts map[Type]int
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[Type]int)}
}

func (c *Counter) Increment(eventType Type) {
	c.Add(eventType, 1)
}

func (c *Counter) Add(eventType Type, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[eventType] += n
}

func (c *Counter) Get(eventType Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[eventType]
}
