package config

import "github.com/urfave/cli/v3"

// Firestore holds dispatch run persistence configuration
type Firestore struct {
	ProjectID string
}

// Flags returns CLI flags for Firestore configuration
func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project ID for dispatch run storage (empty disables persistence)",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DROVER_FIRESTORE_PROJECT_ID"),
		},
	}
}

// Enabled reports whether Firestore persistence is configured
func (c *Firestore) Enabled() bool {
	return c.ProjectID != ""
}
