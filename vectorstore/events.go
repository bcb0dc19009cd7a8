package vectorstore

import "time"

// Operation names reported in events and metrics.
const (
	OpUpsert         = "upsert"
	OpDelete         = "delete"
	OpDeleteByFilter = "delete_by_filter"
	OpGet            = "get"
	OpVectorSearch   = "vector_search"
	OpTextSearch     = "text_search"
	OpCount          = "count"
	OpStats          = "stats"
	OpIndexExists    = "index_exists"
)

// CallEvent describes one completed store call.
type CallEvent struct {
	Op       string
	Latency  time.Duration
	Err      error
	Slow     bool
	CacheHit bool
}

// Observer receives store call events.
type Observer interface {
	OnStoreCall(CallEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(CallEvent)

func (f ObserverFunc) OnStoreCall(e CallEvent) { f(e) }

// noopObserver is a no-op implementation of Observer
type noopObserver struct{}

var _ Observer = (*noopObserver)(nil)

func (noopObserver) OnStoreCall(CallEvent) {}
