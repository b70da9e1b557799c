package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/infra/grub"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// bootFlags are shared by the health-check and rollback commands
type bootFlags struct {
	configPath string
	grubEnv    string
	mountInfo  string
	motdPath   string
	noReboot   bool
}

func (f *bootFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Health check config file",
			Value:       usecase.DefaultConfigPath,
			Destination: &f.configPath,
		},
		&cli.StringFlag{
			Name:        "grubenv",
			Usage:       "GRUB environment block file",
			Value:       usecase.DefaultGrubEnvPath,
			Destination: &f.grubEnv,
		},
		&cli.StringFlag{
			Name:        "mount-info",
			Usage:       "Mount info file",
			Value:       usecase.DefaultMountInfoPath,
			Destination: &f.mountInfo,
		},
		&cli.StringFlag{
			Name:        "motd",
			Usage:       "Boot status MOTD file",
			Value:       usecase.DefaultMOTDPath,
			Destination: &f.motdPath,
		},
		&cli.BoolFlag{
			Name:        "no-reboot",
			Usage:       "Do not reboot or roll back, only report",
			Destination: &f.noReboot,
		},
	}
}

func (f *bootFlags) useCase() *usecase.HealthCheck {
	opts := []usecase.HealthCheckOption{
		usecase.WithConfigPath(f.configPath),
		usecase.WithMOTDPath(f.motdPath),
		usecase.WithGrubEnv(grub.NewEnvFile(f.grubEnv)),
		usecase.WithMounter(grub.NewMounter("/boot", f.mountInfo)),
	}
	if f.noReboot {
		opts = append(opts, usecase.WithoutReboot())
	}
	return usecase.NewHealthCheck(opts...)
}

func cmdHealthCheck() *cli.Command {
	var flags bootFlags

	return &cli.Command{
		Name:  "health-check",
		Usage: "Run boot health diagnostics and record the outcome",
		Flags: flags.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return flags.useCase().Run(ctx)
		},
	}
}

func cmdRollback() *cli.Command {
	var flags bootFlags

	return &cli.Command{
		Name:  "rollback",
		Usage: "Roll back the deployment if the boot counter is spent",
		Flags: flags.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			if err := flags.useCase().Rollback(ctx); err != nil {
				logger.Error("Rollback not performed", "error", err)
				return err
			}
			return nil
		},
	}
}
