package config

import "github.com/urfave/cli/v3"

// Slack holds Slack notification configuration
type Slack struct {
	Token   string
	Channel string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack bot token for dispatch notifications",
			Destination: &c.Token,
			Sources:     cli.EnvVars("DROVER_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel for dispatch notifications",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("DROVER_SLACK_CHANNEL"),
		},
	}
}

// Enabled reports whether notification is fully configured
func (c *Slack) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// Sentry holds error reporting configuration
type Sentry struct {
	DSN string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("DROVER_SENTRY_DSN"),
		},
	}
}
