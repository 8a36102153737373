package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nttcom/threatconnectome-sub003/model"
)

func TestLoadDefaultCatalog(t *testing.T) {
	c, err := LoadDefaultCatalog()
	require.NoError(t, err)
	assert.Len(t, c.humanImpact, 20, "4 safety levels x 5 mission levels")
	assert.Len(t, c.decisions, 72, "3 x 3 x 2 x 4 decision point combinations")
}

func TestLoadCatalogRejectsBadPriority(t *testing.T) {
	data := []byte(`
human_impact:
  - {safety: negligible, mission: none, impact: low}
decisions:
  - {exploitation: none, exposure: small, automatable: "no", human_impact: low, priority: panic}
`)
	_, err := LoadCatalog(data)
	assert.Error(t, err)
}

func TestLoadCatalogRejectsEmpty(t *testing.T) {
	_, err := LoadCatalog([]byte("human_impact: []\ndecisions: []\n"))
	assert.Error(t, err)
}

func TestHumanImpactOf(t *testing.T) {
	c, err := LoadDefaultCatalog()
	require.NoError(t, err)

	tests := []struct {
		safety  model.SafetyImpact
		mission model.MissionImpact
		want    HumanImpact
	}{
		{model.SafetyImpactNegligible, model.MissionImpactNone, HumanImpactLow},
		{model.SafetyImpactNegligible, model.MissionImpactMEFFailure, HumanImpactMedium},
		{model.SafetyImpactMarginal, model.MissionImpactMissionFailure, HumanImpactVeryHigh},
		{model.SafetyImpactCritical, model.MissionImpactDegraded, HumanImpactHigh},
		{model.SafetyImpactCatastrophic, model.MissionImpactNone, HumanImpactVeryHigh},
	}
	for _, tt := range tests {
		got, err := c.HumanImpactOf(tt.safety, tt.mission)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "safety=%s mission=%s", tt.safety, tt.mission)
	}

	_, err = c.HumanImpactOf("unheard_of", model.MissionImpactNone)
	assert.Error(t, err)
}

func TestDeployerPriority(t *testing.T) {
	c, err := LoadDefaultCatalog()
	require.NoError(t, err)

	tests := []struct {
		e    model.Exploitation
		x    model.Exposure
		a    model.Automatable
		h    HumanImpact
		want model.SSVCPriority
	}{
		{model.ExploitationActive, model.ExposureOpen, model.AutomatableYes, HumanImpactVeryHigh, model.SSVCImmediate},
		{model.ExploitationNone, model.ExposureSmall, model.AutomatableNo, HumanImpactLow, model.SSVCDefer},
		{model.ExploitationNone, model.ExposureOpen, model.AutomatableYes, HumanImpactMedium, model.SSVCScheduled},
		{model.ExploitationPoC, model.ExposureOpen, model.AutomatableYes, HumanImpactVeryHigh, model.SSVCOutOfCycle},
		{model.ExploitationActive, model.ExposureControlled, model.AutomatableNo, HumanImpactHigh, model.SSVCOutOfCycle},
	}
	for _, tt := range tests {
		got, err := c.DeployerPriority(tt.e, tt.x, tt.a, tt.h)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "e=%s x=%s a=%s h=%s", tt.e, tt.x, tt.a, tt.h)
	}

	_, err = c.DeployerPriority("weaponized", model.ExposureOpen, model.AutomatableYes, HumanImpactLow)
	assert.Error(t, err)
}

func TestLegacyPriority(t *testing.T) {
	assert.Equal(t, model.SSVCImmediate, LegacyPriority(1))
	assert.Equal(t, model.SSVCOutOfCycle, LegacyPriority(2))
	assert.Equal(t, model.SSVCScheduled, LegacyPriority(3))
	assert.Equal(t, model.SSVCDefer, LegacyPriority(4))
	assert.Equal(t, model.SSVCDefer, LegacyPriority(0), "unset impact defers")
}
