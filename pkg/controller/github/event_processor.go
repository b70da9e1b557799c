package github

import (
	"context"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/async"
	"github.com/m-mizutani/goerr/v2"
)

// EventProcessor routes GitHub webhook events to the dispatch gate
type EventProcessor struct {
	gateUC     interfaces.GateUseCase
	dispatchUC interfaces.DispatchUseCase
}

// NewEventProcessor creates a new GitHub event processor
func NewEventProcessor(gateUC interfaces.GateUseCase, dispatchUC interfaces.DispatchUseCase) *EventProcessor {
	return &EventProcessor{
		gateUC:     gateUC,
		dispatchUC: dispatchUC,
	}
}

// ProcessEvent processes a parsed GitHub webhook payload. Events that
// are not dispatch triggers are dropped without error.
func (p *EventProcessor) ProcessEvent(ctx context.Context, eventType string, payload interface{}) error {
	logger := ctxlog.From(ctx)

	var input *model.GateInput

	switch e := payload.(type) {
	case *github.PullRequestEvent:
		input = extractPullRequestInput(e)
	case *github.IssueCommentEvent:
		input = extractCommentInput(e)
	default:
		logger.Debug("Ignoring unsupported event type", "event_type", eventType)
		return nil
	}

	if input == nil {
		logger.Debug("Event is not a dispatch trigger", "event_type", eventType)
		return nil
	}

	decision, err := p.gateUC.Evaluate(ctx, input)
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate dispatch gate")
	}

	if !decision.Allowed {
		logger.Info("Dispatch denied",
			"owner", input.Owner,
			"repo", input.Repo,
			"number", input.PRNumber,
			"sender", input.Sender,
			"permission", string(decision.Permission),
		)
		return nil
	}

	// Fan out asynchronously so the webhook delivery is acknowledged
	// before the farm submissions complete
	async.Dispatch(ctx, func(ctx context.Context) error {
		_, err := p.dispatchUC.Dispatch(ctx, decision)
		return err
	})

	return nil
}

// extractPullRequestInput builds a gate input from a pull request
// lifecycle event. Only opened, synchronize and reopened qualify.
func extractPullRequestInput(event *github.PullRequestEvent) *model.GateInput {
	switch event.GetAction() {
	case "opened", "synchronize", "reopened":
	default:
		return nil
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	repo := event.GetRepo().GetName()
	number := event.GetPullRequest().GetNumber()
	sender := event.GetSender().GetLogin()

	if owner == "" || repo == "" || number == 0 || sender == "" {
		return nil
	}

	return &model.GateInput{
		Owner:    owner,
		Repo:     repo,
		PRNumber: number,
		Sender:   sender,
		Trigger:  model.TriggerPullRequest,
	}
}

// extractCommentInput builds a gate input from an issue comment event.
// The comment must be on a pull request, newly created, and end with
// the /test token.
func extractCommentInput(event *github.IssueCommentEvent) *model.GateInput {
	if event.GetAction() != "created" {
		return nil
	}
	if !event.GetIssue().IsPullRequest() {
		return nil
	}
	if !model.IsTestCommand(event.GetComment().GetBody()) {
		return nil
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	repo := event.GetRepo().GetName()
	number := event.GetIssue().GetNumber()
	sender := event.GetComment().GetUser().GetLogin()

	if owner == "" || repo == "" || number == 0 || sender == "" {
		return nil
	}

	return &model.GateInput{
		Owner:    owner,
		Repo:     repo,
		PRNumber: number,
		Sender:   sender,
		Trigger:  model.TriggerComment,
	}
}
