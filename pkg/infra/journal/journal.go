package journal

import (
	"context"
	"os/exec"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const rollbackUnit = "greenboot-rollback.service"

// rollbackMarker is the log line the rollback command emits on success
const rollbackMarker = "Rollback successful"

// PreviousRollback checks the previous boot's journal for a successful
// rollback of the deployment. Errors from journalctl are not fatal for
// the caller: a missing journal simply means no rollback was detected.
func PreviousRollback(ctx context.Context) (bool, error) {
	logger := ctxlog.From(ctx)

	cmd := exec.CommandContext(ctx, "journalctl", "-b", "-1", "-u", rollbackUnit, "--no-pager")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			logger.Warn("journalctl failed while checking rollback status",
				"error", err, "output", strings.TrimSpace(string(output)))
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to execute journalctl")
	}

	if strings.TrimSpace(string(output)) == "" {
		logger.Debug("no rollback unit logs found in previous boot")
		return false, nil
	}

	return strings.Contains(string(output), rollbackMarker), nil
}
