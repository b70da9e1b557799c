package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/utils/async"
	"github.com/m-mizutani/goerr/v2"
)

type dispatchUseCase struct {
	farmClient   interfaces.FarmClient
	repo         interfaces.DispatchRepository
	githubClient interfaces.GitHubClient
	notifier     interfaces.Notifier
	targets      []model.Target
	variables    map[string]string
	secrets      map[string]string
	pollInterval time.Duration
}

// DispatchOption is a functional option for dispatch configuration
type DispatchOption func(*dispatchUseCase)

// WithTargets overrides the default target set
func WithTargets(targets []model.Target) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.targets = targets
	}
}

// WithVariables sets plain variables forwarded to every test run
func WithVariables(vars map[string]string) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.variables = vars
	}
}

// WithSecrets sets secret variables forwarded to every test run
func WithSecrets(secrets map[string]string) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.secrets = secrets
	}
}

// WithNotifier enables chat announcements of dispatch results
func WithNotifier(notifier interfaces.Notifier) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.notifier = notifier
	}
}

// WithCommenter enables result comments on the triggering pull request
func WithCommenter(githubClient interfaces.GitHubClient) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.githubClient = githubClient
	}
}

// WithPollInterval overrides the status polling interval
func WithPollInterval(d time.Duration) DispatchOption {
	return func(uc *dispatchUseCase) {
		uc.pollInterval = d
	}
}

// NewDispatch creates a new instance of DispatchUseCase
func NewDispatch(farmClient interfaces.FarmClient, repo interfaces.DispatchRepository, opts ...DispatchOption) interfaces.DispatchUseCase {
	uc := &dispatchUseCase{
		farmClient:   farmClient,
		repo:         repo,
		targets:      model.DefaultTargets(),
		pollInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Dispatch submits one test run per target for an allowed gate decision
func (uc *dispatchUseCase) Dispatch(ctx context.Context, decision *model.GateDecision) (*model.DispatchRun, error) {
	logger := ctxlog.From(ctx)

	if !decision.Allowed {
		return nil, goerr.New("refusing to dispatch for a denied gate decision",
			goerr.V("sender", decision.Input.Sender), goerr.V("permission", string(decision.Permission)))
	}
	if decision.Outputs.HeadSHA == "" || decision.Outputs.CloneURL == "" {
		return nil, goerr.New("gate decision has no dispatch outputs")
	}

	run := &model.DispatchRun{
		ID:        uuid.NewString(),
		Owner:     decision.Input.Owner,
		Repo:      decision.Input.Repo,
		PRNumber:  decision.Input.PRNumber,
		Sender:    decision.Input.Sender,
		Outputs:   decision.Outputs,
		CreatedAt: time.Now(),
	}

	// Targets are independent: record a per-target failure and keep going
	for _, target := range uc.targets {
		result := model.TargetResult{Target: target}

		status, err := uc.farmClient.Submit(ctx, uc.buildRequest(target, decision.Outputs))
		if err != nil {
			logger.Error("Target submission failed",
				"run_id", run.ID,
				"target", target.Name,
				"error", err,
			)
			result.Error = err.Error()
		} else {
			result.RequestID = status.ID
			result.State = status.State
			logger.Info("Submitted test run",
				"run_id", run.ID,
				"target", target.Name,
				"request_id", status.ID,
				"state", string(status.State),
			)
		}

		run.Results = append(run.Results, result)
	}

	if err := uc.repo.Put(ctx, run); err != nil {
		return nil, goerr.Wrap(err, "failed to persist dispatch run", goerr.V("run_id", run.ID))
	}

	uc.announce(ctx, run)

	return run, nil
}

// Wait polls the farm until every accepted request reaches a terminal state
func (uc *dispatchUseCase) Wait(ctx context.Context, run *model.DispatchRun) error {
	logger := ctxlog.From(ctx)

	ticker := time.NewTicker(uc.pollInterval)
	defer ticker.Stop()

	for {
		pending := 0
		for i := range run.Results {
			result := &run.Results[i]
			if !result.OK() || result.State.IsTerminal() {
				continue
			}

			status, err := uc.farmClient.GetRequest(ctx, result.RequestID)
			if err != nil {
				logger.Warn("Failed to poll test run status",
					"run_id", run.ID,
					"request_id", result.RequestID,
					"error", err,
				)
				pending++
				continue
			}

			if status.State != result.State {
				logger.Info("Test run state changed",
					"run_id", run.ID,
					"target", result.Target.Name,
					"state", string(status.State),
				)
			}
			result.State = status.State
			if !status.State.IsTerminal() {
				pending++
			}
		}

		if pending == 0 {
			if err := uc.repo.Put(ctx, run); err != nil {
				return goerr.Wrap(err, "failed to persist dispatch run", goerr.V("run_id", run.ID))
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "aborted while waiting for test runs", goerr.V("run_id", run.ID))
		case <-ticker.C:
		}
	}
}

func (uc *dispatchUseCase) buildRequest(target model.Target, outputs model.DispatchOutputs) *model.FarmRequest {
	return &model.FarmRequest{
		Compose:    target.Compose,
		Arch:       target.Arch,
		GitURL:     outputs.CloneURL,
		GitRef:     outputs.HeadSHA,
		PlanFilter: target.PlanFilter,
		Context: map[string]string{
			"arch": target.Arch,
		},
		Variables: uc.variables,
		Secrets:   uc.secrets,
	}
}

// announce reports the run to Slack and the pull request. Both are
// best-effort and must not fail the dispatch.
func (uc *dispatchUseCase) announce(ctx context.Context, run *model.DispatchRun) {
	if uc.notifier != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyDispatch(ctx, run)
		})
	}

	if uc.githubClient != nil && run.PRNumber > 0 {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.githubClient.CreateComment(ctx, run.Owner, run.Repo, run.PRNumber, formatRunComment(run))
		})
	}
}

// formatRunComment formats the dispatch result as a markdown comment
func formatRunComment(run *model.DispatchRun) string {
	var sb strings.Builder

	sb.WriteString("## Test dispatch\n\n")
	fmt.Fprintf(&sb, "Commit `%s` (`%s`)\n\n", run.Outputs.HeadSHA, run.Outputs.HeadRef)

	for _, res := range run.Results {
		if res.OK() {
			fmt.Fprintf(&sb, "- ✅ `%s` (%s, %s): request `%s`\n",
				res.Target.Name, res.Target.Compose, res.Target.Arch, res.RequestID)
		} else {
			fmt.Fprintf(&sb, "- ❌ `%s` (%s, %s): submission failed\n",
				res.Target.Name, res.Target.Compose, res.Target.Arch)
		}
	}

	fmt.Fprintf(&sb, "\n---\nDispatched by %s (`%s`)\n", types.AppName, run.ID)

	return sb.String()
}
