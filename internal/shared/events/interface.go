package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher is the notification sink. Publishing is best-effort: callers
// use Notify, which never returns an error to the workflow.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// notifyTimeout bounds how long a workflow call waits on the sink.
const notifyTimeout = 3 * time.Second

// Notify publishes each event and logs failures. The caller's cancellation
// does not abort delivery of events for an already committed transition.
func Notify(ctx context.Context, pub Publisher, evts ...Event) {
	if pub == nil || len(evts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for _, e := range evts {
		if err := pub.Publish(ctx, e); err != nil {
			zap.S().Warnw("failed to publish event",
				"event_type", e.Type,
				"subject", e.Subject,
				"error", err,
			)
		}
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the published event types in order.
func (r *Recorder) Types() []string {
	evts := r.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

var (
	_ Publisher = (*Bus)(nil)
	_ Publisher = NopPublisher{}
	_ Publisher = (*Recorder)(nil)
)
