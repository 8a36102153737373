// Package ticket derives remediation tickets from threats and computes their
// SSVC deployer priority from a decision point catalog.
package ticket

import (
	_ "embed"
	"fmt"

	yaml "gopkg.in/yaml.v2"

	"github.com/nttcom/threatconnectome-sub003/model"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// HumanImpact is the SSVC human-impact decision point, derived from safety
// and mission impact.
type HumanImpact string

const (
	// HumanImpactLow is the lowest combined impact level.
	HumanImpactLow HumanImpact = "low"
	// HumanImpactMedium is the second combined impact level.
	HumanImpactMedium HumanImpact = "medium"
	// HumanImpactHigh is the third combined impact level.
	HumanImpactHigh HumanImpact = "high"
	// HumanImpactVeryHigh is the highest combined impact level.
	HumanImpactVeryHigh HumanImpact = "very_high"
)

type humanImpactRow struct {
	Safety  string `yaml:"safety"`
	Mission string `yaml:"mission"`
	Impact  string `yaml:"impact"`
}

type decisionRow struct {
	Exploitation string `yaml:"exploitation"`
	Exposure     string `yaml:"exposure"`
	Automatable  string `yaml:"automatable"`
	HumanImpact  string `yaml:"human_impact"`
	Priority     string `yaml:"priority"`
}

type catalogFile struct {
	HumanImpact []humanImpactRow `yaml:"human_impact"`
	Decisions   []decisionRow    `yaml:"decisions"`
}

type humanImpactKey struct {
	safety  model.SafetyImpact
	mission model.MissionImpact
}

type decisionKey struct {
	exploitation model.Exploitation
	exposure     model.Exposure
	automatable  model.Automatable
	humanImpact  HumanImpact
}

// Catalog is the immutable SSVC lookup table, built once at process start.
type Catalog struct {
	humanImpact map[humanImpactKey]HumanImpact
	decisions   map[decisionKey]model.SSVCPriority
}

// LoadDefaultCatalog parses the embedded decision point catalog.
func LoadDefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalogYAML)
}

// LoadCatalog parses a decision point catalog from YAML.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse SSVC catalog: %w", err)
	}
	if len(file.HumanImpact) == 0 || len(file.Decisions) == 0 {
		return nil, fmt.Errorf("SSVC catalog is missing human_impact or decisions entries")
	}

	c := &Catalog{
		humanImpact: make(map[humanImpactKey]HumanImpact, len(file.HumanImpact)),
		decisions:   make(map[decisionKey]model.SSVCPriority, len(file.Decisions)),
	}
	for _, row := range file.HumanImpact {
		key := humanImpactKey{
			safety:  model.SafetyImpact(row.Safety),
			mission: model.MissionImpact(row.Mission),
		}
		c.humanImpact[key] = HumanImpact(row.Impact)
	}
	for _, row := range file.Decisions {
		priority := model.SSVCPriority(row.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("SSVC catalog decision has unknown priority %q", row.Priority)
		}
		key := decisionKey{
			exploitation: model.Exploitation(row.Exploitation),
			exposure:     model.Exposure(row.Exposure),
			automatable:  model.Automatable(row.Automatable),
			humanImpact:  HumanImpact(row.HumanImpact),
		}
		c.decisions[key] = priority
	}
	return c, nil
}

// HumanImpactOf combines safety and mission impact per the catalog.
func (c *Catalog) HumanImpactOf(safety model.SafetyImpact, mission model.MissionImpact) (HumanImpact, error) {
	impact, ok := c.humanImpact[humanImpactKey{safety: safety, mission: mission}]
	if !ok {
		return "", fmt.Errorf("no human impact entry for safety=%q mission=%q", safety, mission)
	}
	return impact, nil
}

// DeployerPriority looks up the priority for the four deployer decision points.
func (c *Catalog) DeployerPriority(e model.Exploitation, x model.Exposure, a model.Automatable, h HumanImpact) (model.SSVCPriority, error) {
	priority, ok := c.decisions[decisionKey{exploitation: e, exposure: x, automatable: a, humanImpact: h}]
	if !ok {
		return "", fmt.Errorf("no decision entry for exploitation=%q exposure=%q automatable=%q human_impact=%q", e, x, a, h)
	}
	return priority, nil
}

// LegacyPriority maps the legacy four-tier threat impact onto a priority.
// Used only when the full SSVC inputs are unavailable; the decision table
// path is authoritative.
func LegacyPriority(threatImpact int) model.SSVCPriority {
	switch threatImpact {
	case 1:
		return model.SSVCImmediate
	case 2:
		return model.SSVCOutOfCycle
	case 3:
		return model.SSVCScheduled
	default:
		return model.SSVCDefer
	}
}
