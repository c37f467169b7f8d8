package transition

import "github.com/stackwatchd/stackwatch/internal/health"

// Event classifies what happened to a service between two sampling cycles.
type Event string

const (
	// EventNone means no transition: first observation, unchanged state,
	// a continuing failure episode, or a transient starting sample.
	EventNone Event = "none"
	// EventFirstFailure fires once per failure episode, on entering DOWN from UP.
	EventFirstFailure Event = "first-failure"
	// EventRecoveryNatural fires on DOWN→UP without a prior restart attempt.
	EventRecoveryNatural Event = "recovery-natural"
	// EventRecoveryPostRestart fires on DOWN→UP after a restart was issued.
	EventRecoveryPostRestart Event = "recovery-post-restart"
	// EventRepeatedFailure fires when a service is observed DOWN again after
	// a restart attempt; the episode needs manual intervention.
	EventRepeatedFailure Event = "repeated-failure-after-restart"
)

// Classify compares the stored previous state with the freshly sampled
// current state and emits at most one event.
//
// A current sample of starting is transient: nothing fires and the caller
// keeps the previous stored state, so the eventual terminal sample is
// classified against the state that preceded the restart or deploy. A
// previous state of unknown records without an event (first observation).
// Transitions are evaluated strictly against the previous cycle, so a
// failure that begins and ends between two samples only ever surfaces as
// its recovery.
func Classify(previous, current health.ServiceState, restartAttempted bool) Event {
	if current == health.StateStarting || current == health.StateUnknown {
		return EventNone
	}
	if previous == health.StateUnknown || previous == health.StateStarting {
		return EventNone
	}

	switch {
	case health.Up(previous) && health.Down(current):
		return EventFirstFailure
	case health.Down(previous) && health.Down(current):
		if restartAttempted {
			return EventRepeatedFailure
		}
		return EventNone
	case health.Down(previous) && health.Up(current):
		if restartAttempted {
			return EventRecoveryPostRestart
		}
		return EventRecoveryNatural
	default:
		return EventNone
	}
}
