package model

import "time"

// PermissionLevel is a collaborator permission level reported by GitHub
type PermissionLevel string

const (
	PermissionAdmin PermissionLevel = "admin"
	PermissionWrite PermissionLevel = "write"
	PermissionRead  PermissionLevel = "read"
	PermissionNone  PermissionLevel = "none"
)

// Authorized reports whether the permission level is sufficient to
// trigger a test dispatch. Only admin and write qualify.
func (p PermissionLevel) Authorized() bool {
	return p == PermissionAdmin || p == PermissionWrite
}

// GateTrigger identifies what kind of event asked for a dispatch
type GateTrigger string

const (
	TriggerPullRequest GateTrigger = "pull_request"
	TriggerComment     GateTrigger = "comment"
	TriggerManual      GateTrigger = "manual"
)

// GateInput is the normalized request for a gate decision
type GateInput struct {
	Owner    string
	Repo     string
	PRNumber int
	Sender   string
	Trigger  GateTrigger
}

// DispatchOutputs are the values the gate exposes to downstream dispatch
// jobs when the sender is authorized.
type DispatchOutputs struct {
	HeadSHA  string
	HeadRef  string
	CloneURL string
}

// GateDecision is the outcome of an authorization check
type GateDecision struct {
	Input      GateInput
	Allowed    bool
	Permission PermissionLevel
	Outputs    DispatchOutputs
	DecidedAt  time.Time
}
