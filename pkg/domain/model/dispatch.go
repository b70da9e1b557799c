package model

import "time"

// Target is one OS image the dispatcher submits a test run for
type Target struct {
	Name       string
	Compose    string
	Arch       string
	PlanFilter string
}

// DefaultTargets returns the three images every dispatch covers: two
// bootable-container variants and one ostree-based variant.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:       "fedora-bootc",
			Compose:    "Fedora-Rawhide",
			Arch:       "x86_64",
			PlanFilter: "/bootc",
		},
		{
			Name:       "centos-bootc",
			Compose:    "CentOS-Stream-9",
			Arch:       "x86_64",
			PlanFilter: "/bootc",
		},
		{
			Name:       "fedora-iot",
			Compose:    "Fedora-IoT-42",
			Arch:       "x86_64",
			PlanFilter: "/ostree",
		},
	}
}

// TargetResult records the submission outcome for one target. Error is
// kept as a string so the result can be persisted as-is.
type TargetResult struct {
	Target    Target
	RequestID string
	State     FarmState
	Error     string
}

// OK reports whether the submission itself was accepted by the farm
func (r *TargetResult) OK() bool {
	return r.Error == ""
}

// DispatchRun is one fan-out over all targets for a single gate decision
type DispatchRun struct {
	ID        string
	Owner     string
	Repo      string
	PRNumber  int
	Sender    string
	Outputs   DispatchOutputs
	Results   []TargetResult
	CreatedAt time.Time
}

// FailedTargets returns the results whose submission was rejected
func (r *DispatchRun) FailedTargets() []TargetResult {
	var failed []TargetResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// AllSubmitted reports whether every target submission was accepted
func (r *DispatchRun) AllSubmitted() bool {
	return len(r.FailedTargets()) == 0
}
