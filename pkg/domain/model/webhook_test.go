package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

func TestWebhookEvent_IsSupportedEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  *model.WebhookEvent
		expect bool
	}{
		{
			name: "Pull request opened",
			event: &model.WebhookEvent{
				Type:   model.EventTypePullRequest,
				Action: "opened",
			},
			expect: true,
		},
		{
			name: "Pull request synchronize",
			event: &model.WebhookEvent{
				Type:   model.EventTypePullRequest,
				Action: "synchronize",
			},
			expect: true,
		},
		{
			name: "Pull request reopened",
			event: &model.WebhookEvent{
				Type:   model.EventTypePullRequest,
				Action: "reopened",
			},
			expect: true,
		},
		{
			name: "Pull request closed",
			event: &model.WebhookEvent{
				Type:   model.EventTypePullRequest,
				Action: "closed",
			},
			expect: false,
		},
		{
			name: "Issue comment created",
			event: &model.WebhookEvent{
				Type:   model.EventTypeIssueComment,
				Action: "created",
			},
			expect: true,
		},
		{
			name: "Issue comment edited",
			event: &model.WebhookEvent{
				Type:   model.EventTypeIssueComment,
				Action: "edited",
			},
			expect: false,
		},
		{
			name: "Unknown event type",
			event: &model.WebhookEvent{
				Type:   model.EventTypeUnknown,
				Action: "created",
			},
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.ReceivedAt = time.Now()
			if got := tt.event.IsSupportedEvent(); got != tt.expect {
				t.Errorf("IsSupportedEvent() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestIsTestCommand(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		expect bool
	}{
		{
			name:   "Bare command",
			body:   "/test",
			expect: true,
		},
		{
			name:   "Command with leading explanation",
			body:   "looks good, rerunning:\n/test",
			expect: true,
		},
		{
			name:   "Trailing whitespace",
			body:   "/test  \n",
			expect: true,
		},
		{
			name:   "Token in the middle of a sentence",
			body:   "does /test work here?",
			expect: false,
		},
		{
			name:   "Different command",
			body:   "/retest",
			expect: false,
		},
		{
			name:   "Empty body",
			body:   "",
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := model.IsTestCommand(tt.body); got != tt.expect {
				t.Errorf("IsTestCommand(%q) = %v, want %v", tt.body, got, tt.expect)
			}
		})
	}
}
