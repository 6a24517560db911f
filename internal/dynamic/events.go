package dynamic

import (
	"sync"
	"time"
)

// EventType identifies a pipeline progress event.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventGatePassed      EventType = "gate_passed"
	EventStageStarted    EventType = "stage_started"
	EventStageFinished   EventType = "stage_finished"
	EventStageSkipped    EventType = "stage_skipped"
	EventArtifactCreated EventType = "artifact_created"
	EventRunFinished     EventType = "run_finished"
)

// Event is one progress/log notification published by the runner.
type Event struct {
	Time    time.Time `json:"time"`
	Type    EventType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// Notifier fans events out to subscribed callbacks. It decouples the
// pipeline from any UI: consumers subscribe, the core never imports
// them. Publish is synchronous, in subscription order.
type Notifier struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a callback for all future events.
func (n *Notifier) Subscribe(fn func(Event)) {
	n.mu.Lock()
	n.subs = append(n.subs, fn)
	n.mu.Unlock()
}

// Publish delivers an event to every subscriber.
func (n *Notifier) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// publish is a convenience for the runner.
func (n *Notifier) publish(t EventType, stage, msg string) {
	if n == nil {
		return
	}
	n.Publish(Event{Type: t, Stage: stage, Message: msg})
}
