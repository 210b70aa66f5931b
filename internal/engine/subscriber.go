package engine

import (
	"context"
	"time"

	"github.com/williamcory/relay/sdk/agent"
)

// DefaultReconnectDelay is the fixed wait between resubscription attempts.
const DefaultReconnectDelay = 2 * time.Second

// Subscriber owns the long-lived connection to the upstream event stream.
// Whenever the stream ends for any reason it waits a fixed delay and
// resubscribes, forever, until the context is cancelled. Subscription errors
// are never surfaced to the caller.
type Subscriber struct {
	client *agent.Client
	scope  string // optional session scope, "" for all sessions
	delay  time.Duration
	log    *agent.Logger
	debug  agent.DebugSink
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithScope limits the subscription to one session.
func WithScope(sessionID string) SubscriberOption {
	return func(s *Subscriber) { s.scope = sessionID }
}

// WithReconnectDelay overrides the fixed reconnect delay.
func WithReconnectDelay(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithSubscriberLogger sets the subscriber logger.
func WithSubscriberLogger(l *agent.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSubscriberDebug sets the diagnostic sink.
func WithSubscriberDebug(d agent.DebugSink) SubscriberOption {
	return func(s *Subscriber) {
		if d != nil {
			s.debug = d
		}
	}
}

// NewSubscriber creates a subscriber for the given client.
func NewSubscriber(client *agent.Client, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		client: client,
		delay:  DefaultReconnectDelay,
		log:    agent.GetLogger(),
		debug:  agent.NopDebugSink{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run subscribes and forwards every event to handle until ctx is cancelled.
// It blocks for the lifetime of the subscription.
func (s *Subscriber) Run(ctx context.Context, handle func(context.Context, *agent.StreamEvent)) {
	for {
		if ctx.Err() != nil {
			s.debug.Append(agent.DebugEntry{Summary: "event stream: stopped"})
			return
		}

		s.debug.Append(agent.DebugEntry{Summary: "event stream: subscribing"})

		events, errs, err := s.client.SubscribeToEvents(ctx, s.scope)
		if err != nil {
			s.log.Warn("event subscription failed", "error", err)
			s.debug.Append(agent.DebugEntry{Summary: "event stream: error: " + err.Error()})
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.log.Info("event stream connected")
		s.debug.Append(agent.DebugEntry{Summary: "event stream: connected"})

		s.drain(ctx, events, errs, handle)

		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Subscriber) drain(ctx context.Context, events <-chan *agent.StreamEvent, errs <-chan error, handle func(context.Context, *agent.StreamEvent)) {
	// The error channel is read only once the event channel closes, so
	// events buffered at stream end are always handled before reconnecting.
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if err, ok := <-errs; ok && err != nil && ctx.Err() == nil {
					s.log.Warn("event stream error", "error", err)
					s.debug.Append(agent.DebugEntry{Summary: "event stream: error: " + err.Error()})
				}
				return
			}
			handle(ctx, ev)
		}
	}
}

// wait sleeps for the reconnect delay. Returns false if ctx was cancelled.
func (s *Subscriber) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		s.debug.Append(agent.DebugEntry{Summary: "event stream: stopped"})
		return false
	case <-time.After(s.delay):
		return true
	}
}
