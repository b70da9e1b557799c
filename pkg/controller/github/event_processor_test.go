package github_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v75/github"
	ctrl "github.com/m-mizutani/drover/pkg/controller/github"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

type mockGateUseCase struct {
	decision *model.GateDecision
	err      error
	inputs   []*model.GateInput
}

func (m *mockGateUseCase) Evaluate(ctx context.Context, input *model.GateInput) (*model.GateDecision, error) {
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	decision := *m.decision
	decision.Input = *input
	return &decision, nil
}

// mockDispatchUseCase signals through a channel because the processor
// fans out on a background goroutine.
type mockDispatchUseCase struct {
	dispatched chan *model.GateDecision
}

func newMockDispatchUseCase() *mockDispatchUseCase {
	return &mockDispatchUseCase{
		dispatched: make(chan *model.GateDecision, 1),
	}
}

func (m *mockDispatchUseCase) Dispatch(ctx context.Context, decision *model.GateDecision) (*model.DispatchRun, error) {
	m.dispatched <- decision
	return &model.DispatchRun{ID: "run-1"}, nil
}

func (m *mockDispatchUseCase) Wait(ctx context.Context, run *model.DispatchRun) error {
	return nil
}

func (m *mockDispatchUseCase) waitDispatch(t *testing.T) *model.GateDecision {
	t.Helper()
	select {
	case decision := <-m.dispatched:
		return decision
	case <-time.After(time.Second):
		t.Fatal("dispatch was not invoked")
		return nil
	}
}

func (m *mockDispatchUseCase) assertNoDispatch(t *testing.T) {
	t.Helper()
	select {
	case <-m.dispatched:
		t.Error("dispatch should not be invoked")
	case <-time.After(50 * time.Millisecond):
	}
}

func pullRequestEvent(action string) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: github.Ptr(action),
		PullRequest: &github.PullRequest{
			Number: github.Ptr(42),
		},
		Repo: &github.Repository{
			Name:  github.Ptr("widget"),
			Owner: &github.User{Login: github.Ptr("acme")},
		},
		Sender: &github.User{Login: github.Ptr("alice")},
	}
}

func issueCommentEvent(action, body string, onPR bool) *github.IssueCommentEvent {
	issue := &github.Issue{Number: github.Ptr(42)}
	if onPR {
		issue.PullRequestLinks = &github.PullRequestLinks{
			URL: github.Ptr("https://api.github.com/repos/acme/widget/pulls/42"),
		}
	}
	return &github.IssueCommentEvent{
		Action: github.Ptr(action),
		Issue:  issue,
		Comment: &github.IssueComment{
			Body: github.Ptr(body),
			User: &github.User{Login: github.Ptr("alice")},
		},
		Repo: &github.Repository{
			Name:  github.Ptr("widget"),
			Owner: &github.User{Login: github.Ptr("acme")},
		},
	}
}

func allowedDecision() *model.GateDecision {
	return &model.GateDecision{
		Allowed:    true,
		Permission: model.PermissionWrite,
		Outputs: model.DispatchOutputs{
			HeadSHA:  "abc123",
			HeadRef:  "feature",
			CloneURL: "https://github.com/acme/widget.git",
		},
		DecidedAt: time.Now(),
	}
}

func TestEventProcessor_PullRequestOpened(t *testing.T) {
	gateUC := &mockGateUseCase{decision: allowedDecision()}
	dispatchUC := newMockDispatchUseCase()
	processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

	err := processor.ProcessEvent(context.Background(), "pull_request", pullRequestEvent("opened"))
	gt.NoError(t, err)

	decision := dispatchUC.waitDispatch(t)
	gt.Value(t, decision.Input.Owner).Equal("acme")
	gt.Value(t, decision.Input.Repo).Equal("widget")
	gt.Value(t, decision.Input.PRNumber).Equal(42)
	gt.Value(t, decision.Input.Sender).Equal("alice")
	gt.Value(t, decision.Input.Trigger).Equal(model.TriggerPullRequest)
}

func TestEventProcessor_PullRequestActions(t *testing.T) {
	tests := []struct {
		action   string
		dispatch bool
	}{
		{action: "opened", dispatch: true},
		{action: "synchronize", dispatch: true},
		{action: "reopened", dispatch: true},
		{action: "closed", dispatch: false},
		{action: "labeled", dispatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			gateUC := &mockGateUseCase{decision: allowedDecision()}
			dispatchUC := newMockDispatchUseCase()
			processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

			err := processor.ProcessEvent(context.Background(), "pull_request", pullRequestEvent(tt.action))
			gt.NoError(t, err)

			if tt.dispatch {
				dispatchUC.waitDispatch(t)
			} else {
				dispatchUC.assertNoDispatch(t)
				gt.Array(t, gateUC.inputs).Length(0)
			}
		})
	}
}

func TestEventProcessor_TestComment(t *testing.T) {
	gateUC := &mockGateUseCase{decision: allowedDecision()}
	dispatchUC := newMockDispatchUseCase()
	processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

	event := issueCommentEvent("created", "looks good to me /test", true)
	err := processor.ProcessEvent(context.Background(), "issue_comment", event)
	gt.NoError(t, err)

	decision := dispatchUC.waitDispatch(t)
	gt.Value(t, decision.Input.Trigger).Equal(model.TriggerComment)
	gt.Value(t, decision.Input.PRNumber).Equal(42)
}

func TestEventProcessor_CommentFilters(t *testing.T) {
	tests := []struct {
		name  string
		event *github.IssueCommentEvent
	}{
		{
			name:  "comment without test token",
			event: issueCommentEvent("created", "nice work", true),
		},
		{
			name:  "test token not at the end",
			event: issueCommentEvent("created", "/test this please", true),
		},
		{
			name:  "comment on plain issue",
			event: issueCommentEvent("created", "/test", false),
		},
		{
			name:  "edited comment",
			event: issueCommentEvent("edited", "/test", true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateUC := &mockGateUseCase{decision: allowedDecision()}
			dispatchUC := newMockDispatchUseCase()
			processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

			err := processor.ProcessEvent(context.Background(), "issue_comment", tt.event)
			gt.NoError(t, err)
			dispatchUC.assertNoDispatch(t)
			gt.Array(t, gateUC.inputs).Length(0)
		})
	}
}

func TestEventProcessor_DeniedSender(t *testing.T) {
	gateUC := &mockGateUseCase{
		decision: &model.GateDecision{
			Allowed:    false,
			Permission: model.PermissionRead,
		},
	}
	dispatchUC := newMockDispatchUseCase()
	processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

	err := processor.ProcessEvent(context.Background(), "pull_request", pullRequestEvent("opened"))
	gt.NoError(t, err)

	gt.Array(t, gateUC.inputs).Length(1)
	dispatchUC.assertNoDispatch(t)
}

func TestEventProcessor_UnsupportedPayload(t *testing.T) {
	gateUC := &mockGateUseCase{decision: allowedDecision()}
	dispatchUC := newMockDispatchUseCase()
	processor := ctrl.NewEventProcessor(gateUC, dispatchUC)

	err := processor.ProcessEvent(context.Background(), "push", &github.PushEvent{})
	gt.NoError(t, err)
	gt.Array(t, gateUC.inputs).Length(0)
	dispatchUC.assertNoDispatch(t)
}
