package domain

import (
	"context"
	"time"
)

// OutcomeKind tells the dispatcher what to do with a handler result.
type OutcomeKind string

const (
	// OutcomeAdvance persists the next state and sends the replies.
	OutcomeAdvance OutcomeKind = "advance"
	// OutcomeRetry sends the replies but persists nothing: the next event re-enters the same handler.
	OutcomeRetry OutcomeKind = "retry"
	// OutcomeFatal drops the event: nothing is sent or persisted.
	OutcomeFatal OutcomeKind = "fatal"
)

// TransitionEvent describes one handled inbound event.
type TransitionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	UserKey   string        `json:"user_key"`
	From      State         `json:"from"`
	To        State         `json:"to"`
	Kind      OutcomeKind   `json:"kind"`
	EventKind EventKind     `json:"event_kind"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnRetry      func(context.Context, *TransitionEvent)
	OnFatal      func(context.Context, *TransitionEvent)
}

// MergeHooks calls every non-nil callback of each hook set in order.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	pick := func(get func(LifecycleHooks) func(context.Context, *TransitionEvent)) func(context.Context, *TransitionEvent) {
		var fns []func(context.Context, *TransitionEvent)
		for _, s := range sets {
			if fn := get(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *TransitionEvent) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}
	return LifecycleHooks{
		OnTransition: pick(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnTransition }),
		OnRetry:      pick(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnRetry }),
		OnFatal:      pick(func(h LifecycleHooks) func(context.Context, *TransitionEvent) { return h.OnFatal }),
	}
}
