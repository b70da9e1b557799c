package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/memory"
	"github.com/m-mizutani/drover/pkg/infra/testingfarm"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdDispatch() *cli.Command {
	var (
		githubCfg config.GitHub
		farmCfg   config.Farm

		owner  string
		repo   string
		number int64
		sender string
		wait   bool
	)

	flags := append(githubCfg.Flags(), farmCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Repository owner",
			Required:    true,
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Repository name",
			Required:    true,
			Destination: &repo,
		},
		&cli.Int64Flag{
			Name:        "pr",
			Usage:       "Pull request number",
			Required:    true,
			Destination: &number,
		},
		&cli.StringFlag{
			Name:        "as",
			Usage:       "User the gate decision is made for",
			Required:    true,
			Destination: &sender,
		},
		&cli.BoolFlag{
			Name:        "wait",
			Usage:       "Poll until every test run reaches a terminal state",
			Destination: &wait,
		},
	)

	return &cli.Command{
		Name:  "dispatch",
		Usage: "Gate and dispatch test runs for a pull request",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			githubClient, err := githubCfg.NewClient()
			if err != nil {
				return err
			}

			secrets, err := farmCfg.Secrets()
			if err != nil {
				return err
			}

			farmClient := testingfarm.NewClient(farmCfg.APIKey,
				testingfarm.WithBaseURL(farmCfg.APIURL),
			)

			gateUC := usecase.NewGate(githubClient)
			dispatchUC := usecase.NewDispatch(farmClient, memory.New(),
				usecase.WithSecrets(secrets),
			)

			decision, err := gateUC.Evaluate(ctx, &model.GateInput{
				Owner:    owner,
				Repo:     repo,
				PRNumber: int(number),
				Sender:   sender,
				Trigger:  model.TriggerManual,
			})
			if err != nil {
				return err
			}

			if !decision.Allowed {
				color.Red("✗ %s is not authorized to dispatch tests (permission: %s)",
					sender, decision.Permission)
				return goerr.New("dispatch denied",
					goerr.V("sender", sender), goerr.V("permission", string(decision.Permission)))
			}

			run, err := dispatchUC.Dispatch(ctx, decision)
			if err != nil {
				return err
			}

			if wait {
				logger.Info("Waiting for test runs to finish", "run_id", run.ID)
				if err := dispatchUC.Wait(ctx, run); err != nil {
					return err
				}
			}

			printRun(run)

			if !run.AllSubmitted() {
				return goerr.New("some target submissions failed",
					goerr.V("failed", len(run.FailedTargets())))
			}
			return nil
		},
	}
}

func printRun(run *model.DispatchRun) {
	fmt.Printf("dispatch %s for %s/%s#%d @ %s\n",
		run.ID, run.Owner, run.Repo, run.PRNumber, run.Outputs.HeadSHA)

	for _, res := range run.Results {
		if res.OK() {
			color.Green("  ✓ %-14s %s (%s) request=%s state=%s",
				res.Target.Name, res.Target.Compose, res.Target.Arch, res.RequestID, res.State)
		} else {
			color.Red("  ✗ %-14s %s (%s) %s",
				res.Target.Name, res.Target.Compose, res.Target.Arch, res.Error)
		}
	}
}
