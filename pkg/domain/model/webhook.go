package model

import (
	"strings"
	"time"
)

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypePullRequest  WebhookEventType = "pull_request"
	EventTypeIssueComment WebhookEventType = "issue_comment"
	EventTypeUnknown      WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // Event action (e.g., opened, created)
	Repository string           // Repository full name
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	RawPayload []byte           // Raw JSON payload
}

// IsSupportedEvent checks if the event can trigger a test dispatch
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case EventTypePullRequest:
		switch e.Action {
		case "opened", "synchronize", "reopened":
			return true
		}
		return false
	case EventTypeIssueComment:
		return e.Action == "created"
	default:
		return false
	}
}

// IsTestCommand checks whether a comment body ends with the /test token.
// Only the trailing token counts, so quoting a previous command in the
// middle of a comment does not trigger a dispatch.
func IsTestCommand(body string) bool {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return false
	}
	return fields[len(fields)-1] == "/test"
}
