// Package notify delivers alerts to team Slack channels.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/model"
	"github.com/nttcom/threatconnectome-sub003/util"
)

// slackAPI is the subset of the Slack client used here, extracted so tests can
// substitute a fake.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts EOL warnings and ticket alerts to team channels.
// Delivery is best effort; callers decide what a failed send means.
type SlackNotifier struct {
	api            slackAPI
	defaultChannel string
	logger         *zap.SugaredLogger
}

// NewSlackNotifier creates a notifier over a bot token. defaultChannel is used
// when a team has no channel of its own.
func NewSlackNotifier(botToken, defaultChannel string, logger *zap.SugaredLogger) *SlackNotifier {
	return &SlackNotifier{
		api:            slack.New(botToken),
		defaultChannel: defaultChannel,
		logger:         logger,
	}
}

// NopNotifier drops every notification. Used when no Slack token is
// configured.
type NopNotifier struct{}

// NotifyEoLEcosystem drops the warning and reports it as undelivered, so the
// sent flag stays clear and a later resync can still deliver it.
func (NopNotifier) NotifyEoLEcosystem(context.Context, *model.Team, *model.Service, model.Dependency, model.EoLVersion) bool {
	return false
}

func (n *SlackNotifier) channelFor(team *model.Team) string {
	if team == nil {
		return n.defaultChannel
	}
	return util.GetStringOrDefault(team.SlackChannel, n.defaultChannel)
}

// NotifyEoLEcosystem warns the owning team's channel that one of the
// service's dependencies runs on an ecosystem approaching end of life.
// Returns whether the message was delivered.
func (n *SlackNotifier) NotifyEoLEcosystem(ctx context.Context, team *model.Team, svc *model.Service, dep model.Dependency, v model.EoLVersion) bool {
	blocks := BuildEoLBlocks(svc, dep, v)
	channel := n.channelFor(team)
	_, _, err := n.api.PostMessageContext(ctx, channel, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		n.logger.Warnw("slack eol notification failed", "service", svc.Name, "dependency_id", dep.Key, "channel", channel, "error", err)
		return false
	}
	n.logger.Infow("slack eol notification sent", "service", svc.Name, "eol_version", v.Name, "channel", channel)
	return true
}

// NotifyTicketAlert posts a new-ticket alert to the owning team's channel.
func (n *SlackNotifier) NotifyTicketAlert(ctx context.Context, team *model.Team, svc *model.Service, vuln *model.Vuln, ticket *model.Ticket) error {
	blocks := BuildTicketBlocks(svc, vuln, ticket)
	channel := n.channelFor(team)
	if _, _, err := n.api.PostMessageContext(ctx, channel, slack.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("post ticket alert to %s: %w", channel, err)
	}
	return nil
}

// BuildEoLBlocks renders the EOL warning message layout.
func BuildEoLBlocks(svc *model.Service, dep model.Dependency, v model.EoLVersion) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "End-of-life warning", false, false),
	)
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Service *%s* depends on *%s %s*, which reaches end of life on *%s*.",
				svc.Name, v.Name, v.MatchingVersion, v.EoLFrom.Format("2006-01-02")),
			false, false),
		nil, nil,
	)
	detail := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Declared in `%s` (%s).", dep.Target, dep.PackageManager),
			false, false),
		nil, nil,
	)
	return []slack.Block{header, body, slack.NewDividerBlock(), detail}
}

// BuildTicketBlocks renders the new-ticket alert layout.
func BuildTicketBlocks(svc *model.Service, vuln *model.Vuln, ticket *model.Ticket) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "New vulnerability ticket", false, false),
	)
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s*\nPriority: *%s*", vuln.Title, ticket.SSVCDeployerPriority),
			false, false),
		nil, nil,
	)
	blocks := []slack.Block{header, body}
	if svc != nil {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Affected service: *%s*", svc.Name),
				false, false),
			nil, nil,
		))
	}
	if vuln.HintForAction != "" {
		blocks = append(blocks, slack.NewDividerBlock(), slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Recommended action: %s", vuln.HintForAction),
				false, false),
			nil, nil,
		))
	}
	return blocks
}
