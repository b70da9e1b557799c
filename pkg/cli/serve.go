package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/cli/config"
	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/firestore"
	"github.com/m-mizutani/drover/pkg/infra/memory"
	"github.com/m-mizutani/drover/pkg/infra/notify"
	"github.com/m-mizutani/drover/pkg/infra/testingfarm"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg    config.Server
		githubCfg    config.GitHub
		farmCfg      config.Farm
		slackCfg     config.Slack
		sentryCfg    config.Sentry
		firestoreCfg config.Firestore
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, farmCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, firestoreCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server handling GitHub webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting drover server",
				slog.String("addr", serverCfg.Addr),
			)

			if sentryCfg.DSN != "" {
				if err := sentry.Init(sentry.ClientOptions{Dsn: sentryCfg.DSN}); err != nil {
					return goerr.Wrap(err, "failed to initialize sentry")
				}
				defer sentry.Flush(2 * time.Second)
			}

			githubClient, err := githubCfg.NewClient()
			if err != nil {
				return err
			}

			secrets, err := farmCfg.Secrets()
			if err != nil {
				return err
			}

			var repo interfaces.DispatchRepository
			if firestoreCfg.Enabled() {
				fsRepo, err := firestore.New(ctx, firestoreCfg.ProjectID)
				if err != nil {
					return err
				}
				defer fsRepo.Close()
				repo = fsRepo
			} else {
				logger.Warn("No Firestore project configured, dispatch runs are kept in memory")
				repo = memory.New()
			}

			farmClient := testingfarm.NewClient(farmCfg.APIKey,
				testingfarm.WithBaseURL(farmCfg.APIURL),
			)

			dispatchOpts := []usecase.DispatchOption{
				usecase.WithSecrets(secrets),
				usecase.WithCommenter(githubClient),
			}
			if slackCfg.Enabled() {
				dispatchOpts = append(dispatchOpts,
					usecase.WithNotifier(notify.NewSlack(slackCfg.Token, slackCfg.Channel)),
				)
			}

			// Create use cases
			gateUC := usecase.NewGate(githubClient)
			dispatchUC := usecase.NewDispatch(farmClient, repo, dispatchOpts...)
			webhookUC := usecase.NewWebhook()
			processor := githubctrl.NewEventProcessor(gateUC, dispatchUC)

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				webhookUC,
				processor,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(ctx, serverCfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
