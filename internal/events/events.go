// Package events provides an event system for worker pool lifecycle notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine begins its receive loop
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker observes the closed queue and exits
	EventWorkerStopped EventType = "worker_stopped"
	// EventWorkerFault is emitted when a job panics and takes its worker down
	EventWorkerFault EventType = "worker_fault"
	// EventPoolClosing is emitted when teardown closes the job queue
	EventPoolClosing EventType = "pool_closing"
	// EventPoolStopped is emitted after every worker has been joined
	EventPoolStopped EventType = "pool_stopped"
)

// Event represents a pool or worker lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// WorkerID is -1 for pool-level events.
	WorkerID int       `json:"worker_id"`
	Data     EventData `json:"data"`
}

// EventData contains event-specific data
type EventData struct {
	Executed uint64 `json:"executed,omitempty"`
	Pending  int    `json:"pending,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent creates a worker stopped event
func NewWorkerStoppedEvent(workerID int, executed uint64) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Executed: executed,
		},
	}
}

// NewWorkerFaultEvent creates a worker fault event
func NewWorkerFaultEvent(workerID int, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventWorkerFault,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewPoolClosingEvent creates a pool closing event carrying the jobs still queued
func NewPoolClosingEvent(pending int) Event {
	return Event{
		Type:      EventPoolClosing,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Pending: pending,
		},
	}
}

// NewPoolStoppedEvent creates a pool stopped event
func NewPoolStoppedEvent(executed uint64, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventPoolStopped,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Executed: executed,
			Error:    errMsg,
		},
	}
}
