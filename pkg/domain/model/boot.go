package model

// DefaultMaxReboot is the boot counter value used when the greenboot
// config file is missing or unreadable.
const DefaultMaxReboot = 3

// BootConfig holds the health check engine configuration read from
// /etc/greenboot/greenboot.conf.
type BootConfig struct {
	// MaxReboot is written to the GRUB boot_counter when a health
	// check fails, bounding the number of retry boots before rollback.
	MaxReboot int `toml:"GREENBOOT_MAX_BOOT_ATTEMPTS"`

	// DisabledHealthChecks lists script file names skipped during
	// diagnostics.
	DisabledHealthChecks []string `toml:"GREENBOOT_DISABLED_HEALTHCHECKS"`
}

// ScriptFailure records one failed check script and its captured output
type ScriptFailure struct {
	Path   string
	Output string
}

// DiagnosticsReport aggregates a full diagnostics pass over the
// required.d and wanted.d directories.
type DiagnosticsReport struct {
	RequiredFailures []ScriptFailure
	WantedFailures   []ScriptFailure
	Skipped          []string
	// MissingDisabled lists disabled script names that were not found
	// in any check directory.
	MissingDisabled []string
}

// Passed reports whether the boot is healthy. Only required checks
// decide the outcome; wanted failures are advisory.
func (r *DiagnosticsReport) Passed() bool {
	return len(r.RequiredFailures) == 0
}
