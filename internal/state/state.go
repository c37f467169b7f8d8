package state

import (
	"context"
	"time"

	"github.com/stackwatchd/stackwatch/internal/health"
)

// ServiceRecord is the persisted per-service monitoring state.
type ServiceRecord struct {
	State            health.ServiceState `json:"state"`
	LastStateChange  time.Time           `json:"last_state_change"`
	RestartAttempted bool                `json:"restart_attempted"`
	LastRestartTime  time.Time           `json:"last_restart_time"`
}

// AlertCooldownRecord tracks the last dispatched alert per category.
type AlertCooldownRecord struct {
	LastAlertTime time.Time `json:"last_alert_time"`
}

// PendingUpdateRecord describes one detected image update.
type PendingUpdateRecord struct {
	Image           string `json:"image"`
	CurrentDigest   string `json:"current_digest"`
	AvailableDigest string `json:"available_digest"`
	Changelog       string `json:"changelog"`
}

// Document is the full persisted state. It is owned by a single
// process; records are created lazily and mutated in place.
type Document struct {
	Services       map[string]ServiceRecord       `json:"services"`
	Alerts         map[string]AlertCooldownRecord `json:"alerts"`
	PendingUpdates map[string]PendingUpdateRecord `json:"pending_updates"`
}

// NewDocument returns the empty state skeleton.
func NewDocument() Document {
	return Document{
		Services:       map[string]ServiceRecord{},
		Alerts:         map[string]AlertCooldownRecord{},
		PendingUpdates: map[string]PendingUpdateRecord{},
	}
}

// ensureMaps repairs nil maps after JSON decoding of older documents.
func (d *Document) ensureMaps() {
	if d.Services == nil {
		d.Services = map[string]ServiceRecord{}
	}
	if d.Alerts == nil {
		d.Alerts = map[string]AlertCooldownRecord{}
	}
	if d.PendingUpdates == nil {
		d.PendingUpdates = map[string]PendingUpdateRecord{}
	}
}

// Service returns the record for a service, lazily creating it in the
// unknown state on first observation.
func (d *Document) Service(name string) ServiceRecord {
	if record, ok := d.Services[name]; ok {
		return record
	}
	return ServiceRecord{State: health.StateUnknown}
}

// Store defines the interface for persisting the state document.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
