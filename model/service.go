package model

// Exposure is the SSVC system-exposure decision point, set per service.
type Exposure string

const (
	// ExposureSmall means the service is reachable only from a small trusted set.
	ExposureSmall Exposure = "small"
	// ExposureControlled means access is restricted but not negligible.
	ExposureControlled Exposure = "controlled"
	// ExposureOpen means the service is internet facing.
	ExposureOpen Exposure = "open"
)

// MissionImpact is the SSVC mission-impact decision point. "none" is a real,
// specified level, distinct from an unset value.
type MissionImpact string

const (
	// MissionImpactNone means no mission-essential function is touched.
	MissionImpactNone MissionImpact = "none"
	// MissionImpactDegraded means mission capability is degraded.
	MissionImpactDegraded MissionImpact = "degraded"
	// MissionImpactCrippled means support for a mission-essential function is crippled.
	MissionImpactCrippled MissionImpact = "mef_support_crippled"
	// MissionImpactMEFFailure means a mission-essential function fails.
	MissionImpactMEFFailure MissionImpact = "mef_failure"
	// MissionImpactMissionFailure means the whole mission fails.
	MissionImpactMissionFailure MissionImpact = "mission_failure"
)

// Team owns services. Team administration itself is out of scope; the record
// exists so notifications and tickets can name their owner.
type Team struct {
	Key          string `json:"_key,omitempty"`
	Name         string `json:"name"`
	SlackChannel string `json:"slack_channel,omitempty"`
	ObjType      string `json:"objtype,omitempty"`
}

// Service is a deployed piece of software owned by a team. Its dependencies
// are populated from SBOM ingestion.
type Service struct {
	Key                  string        `json:"_key,omitempty"`
	TeamID               string        `json:"team_id"`
	Name                 string        `json:"name"`
	Exposure             Exposure      `json:"exposure"`
	DefaultMissionImpact MissionImpact `json:"default_mission_impact"`
	ObjType              string        `json:"objtype,omitempty"`
}

// NewService creates a service with conservative SSVC defaults.
func NewService(teamID, name string) *Service {
	return &Service{
		TeamID:               teamID,
		Name:                 name,
		Exposure:             ExposureSmall,
		DefaultMissionImpact: MissionImpactNone,
		ObjType:              "Service",
	}
}

// Dependency is the edge from a Service to a PackageVersion, with the
// provenance reported by the SBOM.
type Dependency struct {
	Key              string         `json:"_key,omitempty"`
	ServiceID        string         `json:"service_id"`
	PackageVersionID string         `json:"package_version_id"`
	Target           string         `json:"target"` // path the dependency was declared in
	PackageManager   string         `json:"package_manager"`
	Version          string         `json:"version"` // version string as declared
	MissionImpact    *MissionImpact `json:"mission_impact,omitempty"` // overrides the service default when set
	ObjType          string         `json:"objtype,omitempty"`
}

// NewDependency creates a dependency edge.
func NewDependency(serviceID, packageVersionID, target, packageManager, version string) *Dependency {
	return &Dependency{
		ServiceID:        serviceID,
		PackageVersionID: packageVersionID,
		Target:           target,
		PackageManager:   packageManager,
		Version:          version,
		ObjType:          "Dependency",
	}
}

// EffectiveMissionImpact resolves the dependency-level override against the
// service default.
func (d *Dependency) EffectiveMissionImpact(svc *Service) MissionImpact {
	if d.MissionImpact != nil {
		return *d.MissionImpact
	}
	return svc.DefaultMissionImpact
}
