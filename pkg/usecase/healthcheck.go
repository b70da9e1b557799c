package usecase

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/grub"
	"github.com/m-mizutani/drover/pkg/infra/journal"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// Default filesystem locations of the health check engine
const (
	DefaultConfigPath    = "/etc/greenboot/greenboot.conf"
	DefaultGrubEnvPath   = "/boot/grub2/grubenv"
	DefaultMountInfoPath = "/proc/mounts"
	DefaultMOTDPath      = "/run/motd.d/boot-status"
)

// DefaultInstallRoots are scanned for check/required.d, check/wanted.d,
// green.d and red.d script directories.
var DefaultInstallRoots = []string{"/usr/lib/greenboot", "/etc/greenboot"}

// HealthCheck runs boot health diagnostics and drives the GRUB boot
// counter, MOTD and rollback handling around them.
type HealthCheck struct {
	installRoots []string
	configPath   string
	motdPath     string
	grubEnv      *grub.EnvFile
	mounter      *grub.Mounter
	noReboot     bool

	// injection points for tests
	runHook          func(ctx context.Context, name string, args ...string) error
	previousRollback func(ctx context.Context) (bool, error)
}

// HealthCheckOption is a functional option for HealthCheck configuration
type HealthCheckOption func(*HealthCheck)

// WithInstallRoots overrides the script directories
func WithInstallRoots(roots []string) HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.installRoots = roots
	}
}

// WithConfigPath overrides the config file location
func WithConfigPath(path string) HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.configPath = path
	}
}

// WithMOTDPath overrides where the boot status message is written
func WithMOTDPath(path string) HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.motdPath = path
	}
}

// WithGrubEnv overrides the GRUB environment block accessor
func WithGrubEnv(env *grub.EnvFile) HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.grubEnv = env
	}
}

// WithMounter overrides the /boot remount handler
func WithMounter(m *grub.Mounter) HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.mounter = m
	}
}

// WithoutReboot disables reboot and rollback command execution, used
// for dry runs and tests.
func WithoutReboot() HealthCheckOption {
	return func(uc *HealthCheck) {
		uc.noReboot = true
	}
}

// NewHealthCheck creates a new HealthCheck use case
func NewHealthCheck(opts ...HealthCheckOption) *HealthCheck {
	uc := &HealthCheck{
		installRoots:     DefaultInstallRoots,
		configPath:       DefaultConfigPath,
		motdPath:         DefaultMOTDPath,
		grubEnv:          grub.NewEnvFile(DefaultGrubEnvPath),
		mounter:          grub.NewMounter("/boot", DefaultMountInfoPath),
		previousRollback: journal.PreviousRollback,
	}
	uc.runHook = uc.runSystemCommand
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// LoadConfig reads the engine configuration. Missing or malformed
// config falls back to defaults with a warning, never an error: the
// health check must run on an unprovisioned system.
func (uc *HealthCheck) LoadConfig(ctx context.Context) *model.BootConfig {
	logger := ctxlog.From(ctx)

	cfg := &model.BootConfig{MaxReboot: model.DefaultMaxReboot}

	data, err := os.ReadFile(uc.configPath)
	if err != nil {
		logger.Warn("Cannot read config, using defaults",
			"path", uc.configPath, "error", err, "max_reboot", cfg.MaxReboot)
		return cfg
	}

	var parsed model.BootConfig
	if err := toml.Unmarshal(data, &parsed); err != nil {
		// Conf files in the wild carry shell-style assignments on keys
		// this engine does not consume; retry with only its own keys
		if retryErr := toml.Unmarshal(filterConfigKeys(data), &parsed); retryErr != nil {
			logger.Warn("Cannot parse config, using defaults",
				"path", uc.configPath, "error", err, "max_reboot", cfg.MaxReboot)
			return cfg
		}
		logger.Warn("Config partially parsed, ignoring unrelated entries",
			"path", uc.configPath, "error", err)
	}

	if parsed.MaxReboot > 0 {
		cfg.MaxReboot = parsed.MaxReboot
	} else if parsed.MaxReboot < 0 {
		logger.Warn("Invalid max boot attempts, using default",
			"value", parsed.MaxReboot, "max_reboot", cfg.MaxReboot)
	}
	cfg.DisabledHealthChecks = parsed.DisabledHealthChecks

	return cfg
}

// configKeys are the assignments the engine consumes; anything else in
// greenboot.conf belongs to the shell scripts sourcing it.
var configKeys = []string{
	"GREENBOOT_MAX_BOOT_ATTEMPTS",
	"GREENBOOT_DISABLED_HEALTHCHECKS",
}

func filterConfigKeys(data []byte) []byte {
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if contains(configKeys, key) {
			kept = append(kept, trimmed)
		}
	}
	return []byte(strings.Join(kept, "\n"))
}

// Run executes the full health check flow: diagnostics, green/red
// scripts, MOTD, GRUB status and - on failure - boot counter and reboot.
func (uc *HealthCheck) Run(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	cfg := uc.LoadConfig(ctx)
	logger.Debug("Loaded config", "max_reboot", cfg.MaxReboot, "disabled", cfg.DisabledHealthChecks)

	rolledBack, err := uc.previousRollback(ctx)
	if err != nil {
		logger.Warn("Failed to check previous rollback status, assuming none", "error", err)
		rolledBack = false
	}
	if rolledBack {
		logger.Info("Fallback boot detected: default deployment has been rolled back")
	}

	uc.setMOTD(ctx, "Boot health check is in progress", rolledBack)

	report, err := uc.RunDiagnostics(ctx, cfg.DisabledHealthChecks)
	if err != nil {
		return uc.handleFailure(ctx, cfg, rolledBack, err)
	}
	if !report.Passed() {
		err := goerr.New("required health check failed",
			goerr.V("failures", len(report.RequiredFailures)))
		return uc.handleFailure(ctx, cfg, rolledBack, err)
	}

	logger.Info("Health check passed")

	for _, failure := range uc.runScriptDirs(ctx, "green", "green.d") {
		logger.Error("Green script failed", "path", failure.Path, "output", failure.Output)
	}

	uc.setMOTD(ctx, "Boot health check passed - status is GREEN", rolledBack)

	if err := uc.recordBootStatus(true, 0); err != nil {
		return err
	}

	return nil
}

// handleFailure runs the red scripts, records the failed status and the
// boot counter, then reboots so GRUB can count down toward rollback.
func (uc *HealthCheck) handleFailure(ctx context.Context, cfg *model.BootConfig, rolledBack bool, cause error) error {
	logger := ctxlog.From(ctx)

	logger.Error("Health check failed", "error", cause)

	uc.setMOTD(ctx, "Boot health check failed - status is RED", rolledBack)

	for _, failure := range uc.runScriptDirs(ctx, "red", "red.d") {
		logger.Error("Red script failed", "path", failure.Path, "output", failure.Output)
	}

	if err := uc.recordBootStatus(false, cfg.MaxReboot); err != nil {
		logger.Error("Cannot record boot status", "error", err)
	}

	if err := uc.reboot(ctx, false); err != nil {
		logger.Error("Cannot reboot", "error", err)
	}

	return goerr.Wrap(cause, "boot health check failed")
}

// RunDiagnostics runs the required.d and wanted.d checks under every
// install root. A failing required script aborts its directory scan;
// wanted failures are collected but never fatal.
func (uc *HealthCheck) RunDiagnostics(ctx context.Context, disabled []string) (*model.DiagnosticsReport, error) {
	logger := ctxlog.From(ctx)

	report := &model.DiagnosticsReport{}
	seen := map[string]bool{}

	rootExists := false
	for _, root := range uc.installRoots {
		dir := filepath.Join(root, "check", "required.d")
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Warn("Skipping checks, not a directory", "path", dir)
			continue
		}
		rootExists = true

		failures, skipped := uc.runScripts(ctx, "required", dir, disabled, true)
		report.RequiredFailures = append(report.RequiredFailures, failures...)
		report.Skipped = append(report.Skipped, skipped...)
		for _, s := range skipped {
			seen[s] = true
		}

		if len(failures) > 0 {
			logger.Error("Required health check failed, skipping remaining scripts")
			return report, nil
		}
	}

	if !rootExists {
		return nil, goerr.New("cannot find any required.d directory",
			goerr.V("roots", uc.installRoots))
	}

	for _, root := range uc.installRoots {
		dir := filepath.Join(root, "check", "wanted.d")
		failures, skipped := uc.runScripts(ctx, "wanted", dir, disabled, false)
		report.WantedFailures = append(report.WantedFailures, failures...)
		report.Skipped = append(report.Skipped, skipped...)
		for _, s := range skipped {
			seen[s] = true
		}

		for _, failure := range failures {
			logger.Warn("Wanted script failed", "path", failure.Path)
		}
	}

	for _, name := range disabled {
		if !seen[name] {
			report.MissingDisabled = append(report.MissingDisabled, name)
		}
	}
	if len(report.MissingDisabled) > 0 {
		logger.Warn("Disabled scripts were not found in any directory",
			"missing", report.MissingDisabled)
	}

	return report, nil
}

// runScriptDirs runs a script directory under every install root and
// collects failures, used for the green.d and red.d hooks.
func (uc *HealthCheck) runScriptDirs(ctx context.Context, kind, subdir string) []model.ScriptFailure {
	var failures []model.ScriptFailure
	for _, root := range uc.installRoots {
		dirFailures, _ := uc.runScripts(ctx, kind, filepath.Join(root, subdir), nil, false)
		failures = append(failures, dirFailures...)
	}
	return failures
}

// runScripts executes every runnable entry of a directory: *.sh files
// via bash, anything else with an execute bit directly. With failFast
// the first failure stops the scan.
func (uc *HealthCheck) runScripts(ctx context.Context, kind, dir string, disabled []string, failFast bool) ([]model.ScriptFailure, []string) {
	logger := ctxlog.From(ctx)

	var failures []model.ScriptFailure
	var skipped []string

	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		failures = append(failures, model.ScriptFailure{Path: dir, Output: err.Error()})
		return failures, skipped
	}

	for _, entry := range entries {
		info, err := os.Stat(entry)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		isScript := strings.HasSuffix(entry, ".sh")
		executable := info.Mode().Perm()&0111 != 0
		if !isScript && !executable {
			continue
		}

		name := filepath.Base(entry)
		if contains(disabled, name) {
			logger.Info("Skipping disabled script", "name", name)
			skipped = append(skipped, name)
			continue
		}

		logger.Info("Running check", "kind", kind, "path", entry)

		var cmd *exec.Cmd
		if isScript {
			cmd = exec.CommandContext(ctx, "bash", entry)
		} else {
			cmd = exec.CommandContext(ctx, entry)
		}

		output, err := cmd.CombinedOutput()
		if err != nil {
			logger.Error("Check failed", "kind", kind, "path", entry)
			failures = append(failures, model.ScriptFailure{
				Path:   entry,
				Output: strings.TrimSpace(string(output)),
			})
			if failFast {
				break
			}
			continue
		}

		logger.Info("Check passed", "kind", kind, "path", entry)
	}

	return failures, skipped
}

// recordBootStatus writes the health outcome into the GRUB environment
// block, remounting /boot read-write for the duration when necessary.
func (uc *HealthCheck) recordBootStatus(success bool, bootCounter int) error {
	restore, err := uc.mounter.RemountRW()
	if err != nil {
		return goerr.Wrap(err, "failed to make boot partition writable")
	}
	defer func() {
		_ = restore()
	}()

	env, err := uc.grubEnv.Load()
	if err != nil {
		return err
	}

	if success {
		env[grub.KeyBootSuccess] = "1"
		delete(env, grub.KeyBootCounter)
	} else {
		env[grub.KeyBootSuccess] = "0"
		env[grub.KeyBootCounter] = strconv.Itoa(bootCounter)
	}

	return uc.grubEnv.Save(env)
}

// Rollback rolls the deployment back when the boot counter shows the
// retry budget is spent, then clears the counter and reboots.
func (uc *HealthCheck) Rollback(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	counter, ok, err := uc.grubEnv.Get(grub.KeyBootCounter)
	if err != nil {
		return err
	}
	if !ok {
		return goerr.New("boot counter is not set, rollback is not initiated")
	}

	remaining, err := strconv.Atoi(counter)
	if err != nil {
		return goerr.Wrap(err, "malformed boot counter, rollback is not initiated",
			goerr.V("boot_counter", counter))
	}
	if remaining > 0 {
		return goerr.New("boot counter is not spent, rollback is not initiated",
			goerr.V("boot_counter", remaining))
	}

	logger.Info("Boot counter spent, rolling back deployment", "boot_counter", remaining)

	if err := uc.rollbackDeployment(ctx); err != nil {
		return goerr.Wrap(err, "rollback is not initiated")
	}

	logger.Info("Rollback successful")

	restore, err := uc.mounter.RemountRW()
	if err != nil {
		return goerr.Wrap(err, "failed to make boot partition writable")
	}
	defer func() {
		_ = restore()
	}()

	if err := uc.grubEnv.Unset(grub.KeyBootCounter); err != nil {
		return err
	}

	return uc.reboot(ctx, true)
}

// rollbackDeployment prefers bootc and falls back to rpm-ostree for
// older tree-based systems.
func (uc *HealthCheck) rollbackDeployment(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	if uc.noReboot {
		logger.Info("Reboot disabled, skipping deployment rollback")
		return nil
	}

	if err := uc.runHook(ctx, "bootc", "rollback"); err != nil {
		logger.Warn("bootc rollback failed, trying rpm-ostree", "error", err)
		if err := uc.runHook(ctx, "rpm-ostree", "rollback"); err != nil {
			return goerr.Wrap(err, "failed to roll back deployment")
		}
	}

	return nil
}

func (uc *HealthCheck) reboot(ctx context.Context, force bool) error {
	logger := ctxlog.From(ctx)

	if uc.noReboot {
		logger.Info("Reboot disabled, skipping reboot", "force", force)
		return nil
	}

	args := []string{"reboot"}
	if force {
		args = append(args, "--force")
	}

	if err := uc.runHook(ctx, "systemctl", args...); err != nil {
		return goerr.Wrap(err, "failed to reboot")
	}

	return nil
}

// setMOTD writes the boot status message. A rollback in the previous
// boot prefixes a fallback warning. MOTD failures are logged only: the
// message must never block the health flow.
func (uc *HealthCheck) setMOTD(ctx context.Context, message string, rolledBack bool) {
	logger := ctxlog.From(ctx)

	if rolledBack {
		message = "FALLBACK BOOT DETECTED! Default deployment has been rolled back.\n" + message
	}

	if err := os.MkdirAll(filepath.Dir(uc.motdPath), 0755); err != nil {
		logger.Error("Cannot create MOTD directory", "path", uc.motdPath, "error", err)
		return
	}

	if err := os.WriteFile(uc.motdPath, []byte(message+"\n"), 0644); err != nil {
		logger.Error("Cannot set MOTD", "path", uc.motdPath, "error", err)
	}
}

func (uc *HealthCheck) runSystemCommand(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return goerr.Wrap(err, "command failed",
			goerr.V("command", name), goerr.V("output", strings.TrimSpace(string(output))))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
