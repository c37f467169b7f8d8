package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler serves /healthz: 200 while monitoring cycles complete
// within twice the check interval, 503 once they go stale. Tracker
// methods tolerate a nil tracker, which reports unhealthy.
func HealthHandler(tracker *Tracker, checkInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, tracker.Healthy(time.Now().UTC(), checkInterval), tracker.Snapshot())
	}
}

// ReadyHandler serves /readyz: 200 once the first cycle has completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, tracker.Ready(), tracker.Snapshot())
	}
}

func respond(w http.ResponseWriter, ok bool, snapshot Snapshot) {
	status := http.StatusServiceUnavailable
	if ok {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snapshot)
}
