package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// SlackNotifier announces dispatch results to a Slack channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

var _ interfaces.Notifier = (*SlackNotifier)(nil)

// NewSlack creates a Slack notifier
func NewSlack(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// NotifyDispatch posts a summary of one dispatch run
func (n *SlackNotifier) NotifyDispatch(ctx context.Context, run *model.DispatchRun) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(formatRun(run), false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post slack message",
			goerr.V("channel", n.channel), goerr.V("run_id", run.ID))
	}

	return nil
}

func formatRun(run *model.DispatchRun) string {
	var sb strings.Builder

	mark := ":white_check_mark:"
	if !run.AllSubmitted() {
		mark = ":warning:"
	}

	fmt.Fprintf(&sb, "%s test dispatch for %s/%s#%d (%s)\n",
		mark, run.Owner, run.Repo, run.PRNumber, run.Outputs.HeadSHA)

	for _, res := range run.Results {
		if res.OK() {
			fmt.Fprintf(&sb, "• %s: request `%s` (%s)\n", res.Target.Name, res.RequestID, res.State)
		} else {
			fmt.Fprintf(&sb, "• %s: submission failed: %s\n", res.Target.Name, res.Error)
		}
	}

	fmt.Fprintf(&sb, "_%s %s_", types.AppName, run.ID)

	return sb.String()
}
