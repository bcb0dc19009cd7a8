package embedding

import "time"

// EventType names an embedding client event.
type EventType string

const (
	EventCacheHit      EventType = "cache_hit"
	EventEmbedded      EventType = "embedded"
	EventRateLimitWait EventType = "rate_limit_wait"
	EventRetry         EventType = "retry"
	EventError         EventType = "error"
	EventQuotaExceeded EventType = "quota_exceeded"
)

// Event is emitted by the Client. Fields irrelevant to the type are zero.
type Event struct {
	Type        EventType
	Model       string
	Fingerprint string
	Latency     time.Duration
	Wait        time.Duration
	Attempt     int
	Tokens      int
	Err         error
}

// Observer receives Client events. Implementations must be safe for
// concurrent use and should not block.
type Observer interface {
	OnEmbeddingEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEmbeddingEvent calls f(e).
func (f ObserverFunc) OnEmbeddingEvent(e Event) { f(e) }
