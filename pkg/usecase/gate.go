package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type gateUseCase struct {
	githubClient interfaces.GitHubClient
}

// NewGate creates a new instance of GateUseCase
func NewGate(githubClient interfaces.GitHubClient) interfaces.GateUseCase {
	return &gateUseCase{
		githubClient: githubClient,
	}
}

// Evaluate checks the sender's repository permission and resolves the
// dispatch outputs from the pull request head when authorized.
func (uc *gateUseCase) Evaluate(ctx context.Context, input *model.GateInput) (*model.GateDecision, error) {
	logger := ctxlog.From(ctx)

	if input.Owner == "" || input.Repo == "" || input.Sender == "" {
		return nil, goerr.New("gate input is missing required fields",
			goerr.V("owner", input.Owner), goerr.V("repo", input.Repo), goerr.V("sender", input.Sender))
	}

	decision := &model.GateDecision{
		Input:     *input,
		DecidedAt: time.Now(),
	}

	perm, err := uc.githubClient.GetPermissionLevel(ctx, input.Owner, input.Repo, input.Sender)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check sender permission")
	}
	decision.Permission = perm
	decision.Allowed = perm.Authorized()

	logger.Info("Gate decision",
		"owner", input.Owner,
		"repo", input.Repo,
		"number", input.PRNumber,
		"sender", input.Sender,
		"permission", string(perm),
		"allowed", decision.Allowed,
	)

	if !decision.Allowed {
		return decision, nil
	}

	head, err := uc.githubClient.GetPullRequestHead(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve pull request head")
	}

	decision.Outputs = model.DispatchOutputs{
		HeadSHA:  head.SHA,
		HeadRef:  head.Ref,
		CloneURL: head.CloneURL,
	}

	return decision, nil
}
