package config

import (
	"strings"

	"github.com/m-mizutani/drover/pkg/infra/testingfarm"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Farm holds Testing Farm configuration
type Farm struct {
	APIURL string
	APIKey string
	// SecretNames lists environment variables forwarded to test runs
	// as secrets, in NAME or NAME=VALUE form.
	SecretNames []string
}

// Flags returns CLI flags for Testing Farm configuration
func (c *Farm) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "farm-api-url",
			Usage:       "Testing Farm API URL",
			Value:       testingfarm.DefaultBaseURL,
			Destination: &c.APIURL,
			Sources:     cli.EnvVars("DROVER_FARM_API_URL"),
		},
		&cli.StringFlag{
			Name:        "farm-api-key",
			Usage:       "Testing Farm API key",
			Required:    true,
			Destination: &c.APIKey,
			Sources:     cli.EnvVars("DROVER_FARM_API_KEY"),
		},
		&cli.StringSliceFlag{
			Name:        "farm-secret",
			Usage:       "Secret forwarded to test runs (NAME=VALUE, repeatable)",
			Destination: &c.SecretNames,
			Sources:     cli.EnvVars("DROVER_FARM_SECRETS"),
		},
	}
}

// Secrets parses the configured secret list into a map
func (c *Farm) Secrets() (map[string]string, error) {
	if len(c.SecretNames) == 0 {
		return nil, nil
	}

	secrets := make(map[string]string, len(c.SecretNames))
	for _, entry := range c.SecretNames {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, goerr.New("invalid farm secret, expected NAME=VALUE",
				goerr.V("entry", entry))
		}
		secrets[name] = value
	}

	return secrets, nil
}
