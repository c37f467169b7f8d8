package notify

import (
	"context"
	"time"
)

// Severity grades an alert for color mapping and log level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Color returns the integer color code for the notification sink.
func (s Severity) Color() int {
	switch s {
	case SeveritySuccess:
		return 3066993
	case SeverityWarning:
		return 16753920
	case SeverityCritical:
		return 15158332
	default:
		return 3447003
	}
}

// Message is a formatted alert ready for delivery.
type Message struct {
	Title       string
	Description string
	Severity    Severity
	Timestamp   time.Time
	Footer      string
}

// Notifier delivers alert messages to an external sink.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
