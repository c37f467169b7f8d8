package notify

import "context"

// MultiNotifier fans out messages to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that dispatches to all provided
// notifiers, skipping nil entries. Returns nil when nothing remains, so
// callers can treat "no sinks configured" uniformly.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier == nil {
			continue
		}
		filtered = append(filtered, notifier)
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiNotifier{notifiers: filtered}
}

// Send implements Notifier.
func (m *MultiNotifier) Send(ctx context.Context, msg Message) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
