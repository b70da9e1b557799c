package config

import (
	"os"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	githubinfra "github.com/m-mizutani/drover/pkg/infra/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	WebhookSecret  string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Token          string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("DROVER_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("DROVER_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("DROVER_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "Path to GitHub App private key",
			Destination: &c.PrivateKeyPath,
			Sources:     cli.EnvVars("DROVER_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub personal access token (alternative to App auth)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("DROVER_GITHUB_TOKEN"),
		},
	}
}

// NewClient builds a GitHub client from the configuration. App
// credentials win over a personal token when both are present.
func (c *GitHub) NewClient() (interfaces.GitHubClient, error) {
	if c.AppID != 0 && c.InstallationID != 0 && c.PrivateKeyPath != "" {
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key",
				goerr.V("path", c.PrivateKeyPath))
		}
		return githubinfra.NewClient(c.AppID, c.InstallationID, key)
	}

	if c.Token != "" {
		return githubinfra.NewClientWithToken(c.Token), nil
	}

	return nil, goerr.New("GitHub credentials are required: App credentials or token")
}
