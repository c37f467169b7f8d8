package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stackwatchd/stackwatch/internal/state"
)

type recordingNotifier struct {
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDispatch_CooldownSuppressesSecondAlert(t *testing.T) {
	sink := &recordingNotifier{}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), sink, time.Hour, WithClock(fixedClock(now)))
	doc := state.NewDocument()

	if !d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical) {
		t.Fatal("first dispatch should deliver")
	}
	if d.Dispatch(context.Background(), &doc, CategoryFailure, "sonarr down", "stopped", SeverityCritical) {
		t.Fatal("second dispatch within cooldown should be suppressed")
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected exactly one delivered notification, got %d", len(sink.sent))
	}
}

func TestDispatch_CooldownExpires(t *testing.T) {
	sink := &recordingNotifier{}
	current := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), sink, time.Hour, WithClock(func() time.Time { return current }))
	doc := state.NewDocument()

	d.Dispatch(context.Background(), &doc, CategoryDisk, "disk low", "8GB free", SeverityWarning)
	current = current.Add(61 * time.Minute)
	if !d.Dispatch(context.Background(), &doc, CategoryDisk, "disk low", "7GB free", SeverityWarning) {
		t.Fatal("dispatch after cooldown window should deliver")
	}
	if len(sink.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sink.sent))
	}
}

func TestDispatch_CategoriesAreIndependent(t *testing.T) {
	sink := &recordingNotifier{}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), sink, time.Hour, WithClock(fixedClock(now)))
	doc := state.NewDocument()

	d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical)
	if !d.Dispatch(context.Background(), &doc, CategoryRecovery, "radarr up", "recovered", SeveritySuccess) {
		t.Fatal("recovery must not be gated by the failure cooldown")
	}
}

func TestDispatch_RestartLifecycleBypassesCooldown(t *testing.T) {
	sink := &recordingNotifier{}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), sink, time.Hour, WithClock(fixedClock(now)))
	doc := state.NewDocument()

	d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical)
	for _, category := range []Category{CategoryRestartAttempt, CategoryRestartSuccess, CategoryRestartFailed} {
		if !d.Dispatch(context.Background(), &doc, category, "radarr restart", "details", SeverityInfo) {
			t.Fatalf("%s must bypass cooldown gating", category)
		}
	}
	if len(sink.sent) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(sink.sent))
	}
}

func TestDispatch_NoEndpointIsNoop(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), nil, time.Hour, WithClock(fixedClock(now)))
	doc := state.NewDocument()

	if d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical) {
		t.Fatal("dispatch without an endpoint must be a no-op")
	}
	if len(doc.Alerts) != 0 {
		t.Fatal("no-op dispatch must not update cooldown records")
	}
}

func TestDispatch_DeliveryFailureKeepsCooldownOpen(t *testing.T) {
	sink := &recordingNotifier{err: errors.New("sink unreachable")}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(zerolog.Nop(), sink, time.Hour, WithClock(fixedClock(now)))
	doc := state.NewDocument()

	if d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical) {
		t.Fatal("failed delivery must report false")
	}
	if _, ok := doc.Alerts[string(CategoryFailure)]; ok {
		t.Fatal("failed delivery must not stamp the cooldown")
	}

	sink.err = nil
	if !d.Dispatch(context.Background(), &doc, CategoryFailure, "radarr down", "stopped", SeverityCritical) {
		t.Fatal("retry on the next cycle should deliver")
	}
}

func TestSeverityColors(t *testing.T) {
	if SeveritySuccess.Color() == SeverityCritical.Color() {
		t.Fatal("severity colors must differ")
	}
	if SeverityInfo.Color() == 0 || SeverityWarning.Color() == 0 {
		t.Fatal("severities must map to nonzero colors")
	}
}
