package orchestrator

import (
	"time"

	"github.com/poiesic/vectorpipe/core"
)

// EventType identifies a job lifecycle event.
type EventType string

const (
	EventJobQueued    EventType = "job_queued"
	EventJobStarted   EventType = "job_started"
	EventJobProgress  EventType = "job_progress"
	EventJobRetrying  EventType = "job_retrying"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

// Event is a job lifecycle event. Job is a snapshot the observer may keep.
type Event struct {
	Type EventType
	Job  *core.Job
	Err  error
	At   time.Time
}

// Observer receives job lifecycle events.
// Observers are called synchronously and must not block.
type Observer interface {
	OnJobEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnJobEvent(e Event) { f(e) }
