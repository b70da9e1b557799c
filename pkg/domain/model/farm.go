package model

// FarmState is the lifecycle state of a Testing Farm request
type FarmState string

const (
	FarmStateNew      FarmState = "new"
	FarmStateQueued   FarmState = "queued"
	FarmStateRunning  FarmState = "running"
	FarmStateComplete FarmState = "complete"
	FarmStateError    FarmState = "error"
	FarmStateCanceled FarmState = "canceled"
)

// IsTerminal reports whether the request will not change state anymore
func (s FarmState) IsTerminal() bool {
	switch s {
	case FarmStateComplete, FarmStateError, FarmStateCanceled:
		return true
	}
	return false
}

// FarmRequest describes a single test run submitted to the test farm
type FarmRequest struct {
	Compose    string
	Arch       string
	GitURL     string
	GitRef     string
	PlanFilter string

	// Context is forwarded as tmt context (e.g. arch, distro)
	Context map[string]string

	// Variables are plain environment variables for the test plan
	Variables map[string]string

	// Secrets are forwarded by name and must never appear in logs
	Secrets map[string]string
}

// FarmRequestStatus is the farm's view of a submitted request
type FarmRequestStatus struct {
	ID      string
	State   FarmState
	Summary string
}
