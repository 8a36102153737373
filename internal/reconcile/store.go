// Package reconcile keeps Threat and EOL-dependency rows consistent with the
// vulnerabilities, dependencies, and EOL catalogs they are derived from.
package reconcile

import (
	"context"

	"github.com/nttcom/threatconnectome-sub003/model"
)

// EoLProductWithVersions is an EOL catalog entry with its version windows.
type EoLProductWithVersions struct {
	Product  model.EoLProduct
	Versions []model.EoLVersion
}

// Store is the persistence boundary the engines drive: key lookups, inserts,
// and deletes only. No matching logic may live behind it.
type Store interface {
	GetVulnByID(ctx context.Context, id string) (*model.Vuln, error)
	GetPackageByID(ctx context.Context, id string) (*model.Package, error)

	// GetPackagesByVulnMatchingEcosystem returns every package sharing the
	// normalized matching key and name, across raw distro tags.
	GetPackagesByVulnMatchingEcosystem(ctx context.Context, matchingKey, name string) ([]model.Package, error)
	GetPackageVersionByID(ctx context.Context, id string) (*model.PackageVersion, error)
	GetPackageVersionsByPackageID(ctx context.Context, packageID string) ([]model.PackageVersion, error)
	GetAffectsByVulnID(ctx context.Context, vulnID string) ([]model.Affect, error)
	GetAffectsByPackageID(ctx context.Context, packageID string) ([]model.Affect, error)

	// GetThreatByPackageVersionAndVuln returns nil (no error) when the pair
	// has no threat row.
	GetThreatByPackageVersionAndVuln(ctx context.Context, packageVersionID, vulnID string) (*model.Threat, error)
	GetThreatsByVulnID(ctx context.Context, vulnID string) ([]model.Threat, error)
	GetThreatsByPackageVersionID(ctx context.Context, packageVersionID string) ([]model.Threat, error)
	CreateThreat(ctx context.Context, t *model.Threat) error
	DeleteThreat(ctx context.Context, threatID string) error
	DeletePackageVersion(ctx context.Context, packageVersionID string) error

	GetTeamByID(ctx context.Context, id string) (*model.Team, error)
	GetServiceByID(ctx context.Context, id string) (*model.Service, error)
	GetDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.Dependency, error)

	GetAllEoLProducts(ctx context.Context) ([]EoLProductWithVersions, error)
	GetEcosystemEoLDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.EcosystemEoLDependency, error)
	GetPackageEoLDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.PackageEoLDependency, error)
	DeleteEoLDependenciesByServiceID(ctx context.Context, serviceID string) error
	CreateEcosystemEoLDependency(ctx context.Context, d *model.EcosystemEoLDependency) error
	CreatePackageEoLDependency(ctx context.Context, d *model.PackageEoLDependency) error
}

// TicketDeriver cascades ticket creation and removal from threat transitions.
type TicketDeriver interface {
	EnsureTicket(ctx context.Context, threat *model.Threat) error
	RemoveTicket(ctx context.Context, threatID string) error
}

// Notifier delivers EOL warnings to the owning team. A nil team means the
// owner could not be resolved and the notifier picks its fallback channel.
// Delivery is best effort; the returned bool reports success so the caller
// can decide whether to set the sent flag.
type Notifier interface {
	NotifyEoLEcosystem(ctx context.Context, team *model.Team, svc *model.Service, dep model.Dependency, v model.EoLVersion) bool
}
