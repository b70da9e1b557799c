package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/infra/copr"
	"github.com/m-mizutani/drover/pkg/infra/gcs"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdPackage() *cli.Command {
	var dir string

	dirFlag := &cli.StringFlag{
		Name:        "dir",
		Usage:       "Repository checkout directory",
		Value:       ".",
		Destination: &dir,
	}

	return &cli.Command{
		Name:    "package",
		Aliases: []string{"pkg"},
		Usage:   "Packaging descriptor operations",
		Commands: []*cli.Command{
			cmdPackageVersion(dirFlag, &dir),
			cmdPackageArchive(dirFlag, &dir),
			cmdPackageSync(dirFlag, &dir),
			cmdPackageBuild(dirFlag, &dir),
		},
	}
}

func cmdPackageVersion(dirFlag cli.Flag, dir *string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the current package version",
		Flags: []cli.Flag{dirFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc := usecase.NewPackaging()

			desc, err := uc.LoadDescriptor(*dir)
			if err != nil {
				return err
			}

			version, err := uc.Version(ctx, *dir, desc)
			if err != nil {
				return err
			}

			fmt.Println(version)
			return nil
		},
	}
}

func cmdPackageArchive(dirFlag cli.Flag, dir *string) *cli.Command {
	var bucket string

	return &cli.Command{
		Name:  "archive",
		Usage: "Create the vendored source archive",
		Flags: []cli.Flag{
			dirFlag,
			&cli.StringFlag{
				Name:        "bucket",
				Usage:       "Cloud Storage bucket to upload the archive to (empty skips upload)",
				Destination: &bucket,
				Sources:     cli.EnvVars("DROVER_ARTIFACT_BUCKET"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var opts []usecase.PackagingOption
			if bucket != "" {
				store, err := gcs.New(ctx, bucket)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, usecase.WithArtifactStore(store))
			}

			uc := usecase.NewPackaging(opts...)

			desc, err := uc.LoadDescriptor(*dir)
			if err != nil {
				return err
			}

			result, err := uc.Archive(ctx, *dir, desc)
			if err != nil {
				return err
			}

			fmt.Println(result.Path)
			if result.StorageURL != "" {
				fmt.Println(result.StorageURL)
			}
			return nil
		},
	}
}

func cmdPackageSync(dirFlag cli.Flag, dir *string) *cli.Command {
	var dest string

	return &cli.Command{
		Name:  "sync",
		Usage: "Copy declared files into the package spec tree",
		Flags: []cli.Flag{
			dirFlag,
			&cli.StringFlag{
				Name:        "dest",
				Usage:       "Package spec tree directory",
				Required:    true,
				Destination: &dest,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			uc := usecase.NewPackaging()

			desc, err := uc.LoadDescriptor(*dir)
			if err != nil {
				return err
			}

			return uc.Sync(ctx, *dir, dest, desc)
		},
	}
}

func cmdPackageBuild(dirFlag cli.Flag, dir *string) *cli.Command {
	var (
		token   string
		owner   string
		project string
		srpmURL string
	)

	return &cli.Command{
		Name:  "build",
		Usage: "Submit builds for every descriptor target",
		Flags: []cli.Flag{
			dirFlag,
			&cli.StringFlag{
				Name:        "copr-token",
				Usage:       "Build service API token",
				Required:    true,
				Destination: &token,
				Sources:     cli.EnvVars("DROVER_COPR_TOKEN"),
			},
			&cli.StringFlag{
				Name:        "copr-owner",
				Usage:       "Build service owner name",
				Required:    true,
				Destination: &owner,
				Sources:     cli.EnvVars("DROVER_COPR_OWNER"),
			},
			&cli.StringFlag{
				Name:        "copr-project",
				Usage:       "Build service project name",
				Required:    true,
				Destination: &project,
				Sources:     cli.EnvVars("DROVER_COPR_PROJECT"),
			},
			&cli.StringFlag{
				Name:        "srpm-url",
				Usage:       "URL of the source package to build",
				Required:    true,
				Destination: &srpmURL,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			uc := usecase.NewPackaging(
				usecase.WithBuildClient(copr.NewClient(token, owner, project)),
			)

			desc, err := uc.LoadDescriptor(*dir)
			if err != nil {
				return err
			}

			submissions, err := uc.Build(ctx, desc, srpmURL)
			if err != nil {
				return err
			}

			failed := 0
			for _, sub := range submissions {
				if sub.Error != "" {
					failed++
					logger.Error("Build submission failed", "target", sub.Target, "error", sub.Error)
					continue
				}
				fmt.Printf("%s: build %s\n", sub.Target, sub.BuildID)
			}

			if failed > 0 {
				return goerr.New("some build submissions failed", goerr.V("failed", failed))
			}
			return nil
		},
	}
}
