package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWebhookNotifier_PostsEmbed(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(zerolog.Nop(), server.URL,
		WithWebhookTiming(time.Second, time.Millisecond, 10))

	sent := Message{
		Title:       "Service failure: radarr",
		Description: "radarr is stopped",
		Severity:    SeverityCritical,
		Timestamp:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Footer:      defaultFooter,
	}
	if err := notifier.Send(context.Background(), sent); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(received.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(received.Embeds))
	}
	embed := received.Embeds[0]
	if embed.Title != sent.Title {
		t.Fatalf("unexpected title %q", embed.Title)
	}
	if embed.Color != SeverityCritical.Color() {
		t.Fatalf("unexpected color %d", embed.Color)
	}
	if embed.Timestamp != "2026-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", embed.Timestamp)
	}
	if embed.Footer.Text != defaultFooter {
		t.Fatalf("unexpected footer %q", embed.Footer.Text)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(zerolog.Nop(), server.URL,
		WithWebhookTiming(time.Second, time.Millisecond, 10))

	err := notifier.Send(context.Background(), Message{Title: "x", Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookNotifier_EmptyURLIsNil(t *testing.T) {
	if notifier := NewWebhookNotifier(zerolog.Nop(), ""); notifier != nil {
		t.Fatal("empty URL must yield a nil notifier")
	}
}

func TestWebhookNotifier_RetryAfterMutesSink(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(zerolog.Nop(), server.URL,
		WithWebhookTiming(time.Second, time.Millisecond, 10))

	if err := notifier.Send(context.Background(), Message{Title: "x", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected rate-limit error")
	}
	if err := notifier.Send(context.Background(), Message{Title: "y", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected muted sink to fail fast")
	}
	if attempts != 1 {
		t.Fatalf("muted sink must not hit the endpoint, got %d attempts", attempts)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if wait, ok := parseRetryAfter("30"); !ok || wait != 30*time.Second {
		t.Fatalf("expected 30s, got %v %v", wait, ok)
	}
	if _, ok := parseRetryAfter("0"); ok {
		t.Fatal("zero seconds must not mute")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("missing header must not mute")
	}
	if _, ok := parseRetryAfter("garbage"); ok {
		t.Fatal("unparseable header must not mute")
	}
}

func TestWebhookNotifier_SingleAttempt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(zerolog.Nop(), server.URL,
		WithWebhookTiming(time.Second, time.Millisecond, 10))

	if err := notifier.Send(context.Background(), Message{Title: "x", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected delivery error")
	}
	if attempts != 1 {
		t.Fatalf("delivery must be a single POST, got %d attempts", attempts)
	}
}
