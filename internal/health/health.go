package health

// ServiceState is the normalized liveness classification for a service.
type ServiceState string

const (
	StateUnknown       ServiceState = "unknown"
	StateHealthy       ServiceState = "healthy"
	StateNoHealthcheck ServiceState = "no-healthcheck"
	StateStarting      ServiceState = "starting"
	StateUnhealthy     ServiceState = "unhealthy"
	StateStopped       ServiceState = "stopped"
)

// Verdict is the raw health-check verdict reported by the container runtime.
type Verdict string

const (
	VerdictNone      Verdict = "none"
	VerdictHealthy   Verdict = "healthy"
	VerdictUnhealthy Verdict = "unhealthy"
	VerdictStarting  Verdict = "starting"
)

// ContainerStatus captures the two runtime facts the sampler queries.
type ContainerStatus struct {
	Running bool
	Verdict Verdict
}

// Normalize maps a raw container status to a ServiceState.
// Precedence: not running wins over any health verdict; a running
// container without a configured health check is no-healthcheck, which
// downstream logic treats the same as healthy.
func Normalize(status ContainerStatus) ServiceState {
	if !status.Running {
		return StateStopped
	}
	switch status.Verdict {
	case VerdictUnhealthy:
		return StateUnhealthy
	case VerdictStarting:
		return StateStarting
	case VerdictHealthy:
		return StateHealthy
	default:
		return StateNoHealthcheck
	}
}

// Up reports whether the state counts as operational.
func Up(s ServiceState) bool {
	return s == StateHealthy || s == StateNoHealthcheck
}

// Down reports whether the state counts as failed.
func Down(s ServiceState) bool {
	return s == StateStopped || s == StateUnhealthy
}
