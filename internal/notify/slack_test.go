package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/model"
)

type fakeSlack struct {
	calls    int
	channels []string
	fail     bool
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channels = append(f.channels, channelID)
	if f.fail {
		return "", "", fmt.Errorf("channel_not_found")
	}
	return channelID, "1234.5678", nil
}

func newTestNotifier(fail bool) (*SlackNotifier, *fakeSlack) {
	api := &fakeSlack{fail: fail}
	n := &SlackNotifier{api: api, defaultChannel: "#security", logger: zap.NewNop().Sugar()}
	return n, api
}

func eolTestFixture() (*model.Service, model.Dependency, model.EoLVersion) {
	svc := model.NewService("team-1", "payments")
	svc.Key = "svc-1"
	dep := *model.NewDependency(svc.Key, "pv-1", "container/base", "rpm", "3.0.7-1.el9")
	v := model.EoLVersion{
		Key:             "eolv-1",
		Name:            "9",
		MatchingVersion: "rocky-9",
		EoLFrom:         time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
	}
	return svc, dep, v
}

func TestNotifyEoLEcosystemUsesTeamChannel(t *testing.T) {
	n, api := newTestNotifier(false)
	svc, dep, v := eolTestFixture()
	team := &model.Team{Key: "team-1", Name: "payments-core", SlackChannel: "#payments-alerts"}

	ok := n.NotifyEoLEcosystem(context.Background(), team, svc, dep, v)
	assert.True(t, ok)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, []string{"#payments-alerts"}, api.channels)
}

func TestNotifyEoLEcosystemFallsBackToDefaultChannel(t *testing.T) {
	n, api := newTestNotifier(false)
	svc, dep, v := eolTestFixture()

	ok := n.NotifyEoLEcosystem(context.Background(), nil, svc, dep, v)
	assert.True(t, ok)
	assert.Equal(t, []string{"#security"}, api.channels)
}

func TestNotifyEoLEcosystemReportsFailure(t *testing.T) {
	n, api := newTestNotifier(true)
	svc, dep, v := eolTestFixture()

	ok := n.NotifyEoLEcosystem(context.Background(), nil, svc, dep, v)
	assert.False(t, ok, "a failed send must not be reported as delivered")
	assert.Equal(t, 1, api.calls)
}

func TestNotifyTicketAlertUsesTeamChannel(t *testing.T) {
	n, api := newTestNotifier(false)
	team := &model.Team{Key: "team-1", Name: "platform", SlackChannel: "#platform-alerts"}
	svc := model.NewService(team.Key, "gateway")
	vuln := model.NewVuln("heap overflow", "detail")
	vuln.HintForAction = "upgrade to 2.0"
	ticket := model.NewTicket("threat-1", model.SSVCImmediate)

	require.NoError(t, n.NotifyTicketAlert(context.Background(), team, svc, vuln, ticket))
	assert.Equal(t, []string{"#platform-alerts"}, api.channels)
}

func TestNotifyTicketAlertFallsBackToDefaultChannel(t *testing.T) {
	n, api := newTestNotifier(false)
	vuln := model.NewVuln("heap overflow", "detail")
	ticket := model.NewTicket("threat-1", model.SSVCScheduled)

	require.NoError(t, n.NotifyTicketAlert(context.Background(), nil, nil, vuln, ticket))
	assert.Equal(t, []string{"#security"}, api.channels)
}

func TestBuildEoLBlocksLayout(t *testing.T) {
	svc, dep, v := eolTestFixture()
	blocks := BuildEoLBlocks(svc, dep, v)
	require.Len(t, blocks, 4)
	assert.Equal(t, slack.MBTHeader, blocks[0].BlockType())
	assert.Equal(t, slack.MBTSection, blocks[1].BlockType())
	assert.Equal(t, slack.MBTDivider, blocks[2].BlockType())
	assert.Equal(t, slack.MBTSection, blocks[3].BlockType())
}

func TestBuildTicketBlocksOmitsEmptyParts(t *testing.T) {
	vuln := model.NewVuln("advisory", "detail")
	ticket := model.NewTicket("threat-1", model.SSVCDefer)

	blocks := BuildTicketBlocks(nil, vuln, ticket)
	assert.Len(t, blocks, 2, "no service and no hint means header plus body only")

	vuln.HintForAction = "patch"
	svc := model.NewService("team-1", "edge")
	blocks = BuildTicketBlocks(svc, vuln, ticket)
	assert.Len(t, blocks, 5)
}
