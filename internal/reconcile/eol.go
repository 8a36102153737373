package reconcile

import (
	"context"
	"fmt"

	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
	"github.com/nttcom/threatconnectome-sub003/internal/version"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// ResyncServiceEoL recomputes every EOL-dependency row of a service from
// scratch: existing rows are dropped and rebuilt against the current catalog.
// Notification-sent flags survive the rebuild so a warning never fires twice
// for the same (dependency, eol version) pair.
func (e *Engine) ResyncServiceEoL(ctx context.Context, serviceID string) error {
	svc, err := e.store.GetServiceByID(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("resync eol for service %s: %w", serviceID, err)
	}
	team, err := e.store.GetTeamByID(ctx, svc.TeamID)
	if err != nil {
		// Warnings still go out, on the notifier's fallback channel.
		e.logger.Warnw("owning team unresolvable for eol warnings", "service_id", svc.Key, "team_id", svc.TeamID, "error", err)
		team = nil
	}

	sentEco, sentPkg, err := e.collectSentFlags(ctx, serviceID)
	if err != nil {
		return err
	}

	if err := e.store.DeleteEoLDependenciesByServiceID(ctx, serviceID); err != nil {
		return fmt.Errorf("delete eol rows of service %s: %w", serviceID, err)
	}

	deps, err := e.store.GetDependenciesByServiceID(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("get dependencies of service %s: %w", serviceID, err)
	}
	products, err := e.store.GetAllEoLProducts(ctx)
	if err != nil {
		return fmt.Errorf("get eol products: %w", err)
	}

	for _, dep := range deps {
		pv, err := e.store.GetPackageVersionByID(ctx, dep.PackageVersionID)
		if err != nil {
			e.logger.Warnw("skipping dependency with unresolvable package version", "dependency_id", dep.Key, "error", err)
			continue
		}
		pkg, err := e.store.GetPackageByID(ctx, pv.PackageID)
		if err != nil {
			e.logger.Warnw("skipping dependency with unresolvable package", "dependency_id", dep.Key, "error", err)
			continue
		}

		for _, product := range products {
			switch {
			case product.Product.Ecosystem != nil:
				if err := e.matchEcosystemEoL(ctx, team, svc, dep, pkg, product.Versions, sentEco); err != nil {
					e.logger.Warnw("ecosystem eol matching failed", "dependency_id", dep.Key, "product", product.Product.Name, "error", err)
				}
			case product.Product.PackageName != nil:
				if err := e.matchPackageEoL(ctx, dep, pkg, pv, *product.Product.PackageName, product.Versions, sentPkg); err != nil {
					e.logger.Warnw("package eol matching failed", "dependency_id", dep.Key, "product", product.Product.Name, "error", err)
				}
			}
		}
	}
	return nil
}

type eolPair struct {
	ownerID      string // dependency id
	eolVersionID string
}

func (e *Engine) collectSentFlags(ctx context.Context, serviceID string) (map[eolPair]bool, map[eolPair]bool, error) {
	ecoRows, err := e.store.GetEcosystemEoLDependenciesByServiceID(ctx, serviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get ecosystem eol rows of service %s: %w", serviceID, err)
	}
	pkgRows, err := e.store.GetPackageEoLDependenciesByServiceID(ctx, serviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get package eol rows of service %s: %w", serviceID, err)
	}

	sentEco := make(map[eolPair]bool, len(ecoRows))
	for _, r := range ecoRows {
		if r.NotificationSent {
			sentEco[eolPair{ownerID: r.DependencyID, eolVersionID: r.EoLVersionID}] = true
		}
	}
	sentPkg := make(map[eolPair]bool, len(pkgRows))
	for _, r := range pkgRows {
		if r.NotificationSent {
			sentPkg[eolPair{ownerID: r.DependencyID, eolVersionID: r.EoLVersionID}] = true
		}
	}
	return sentEco, sentPkg, nil
}

// matchEcosystemEoL links the dependency to every ecosystem-level EOL version
// whose matching version equals the package's vuln-matching ecosystem key.
// An ambiguous ecosystem tag (no distro-version suffix) simply never matches.
func (e *Engine) matchEcosystemEoL(ctx context.Context, team *model.Team, svc *model.Service, dep model.Dependency, pkg *model.Package, versions []model.EoLVersion, sent map[eolPair]bool) error {
	key := pkg.VulnMatchingEcosystem()
	for _, v := range versions {
		if v.MatchingVersion != key {
			continue
		}

		row := &model.EcosystemEoLDependency{
			ServiceID:        svc.Key,
			DependencyID:     dep.Key,
			EoLVersionID:     v.Key,
			Ecosystem:        key,
			NotificationSent: sent[eolPair{ownerID: dep.Key, eolVersionID: v.Key}],
			ObjType:          "EcosystemEoLDependency",
			CreatedAt:        e.now(),
		}
		if !row.NotificationSent && e.withinWarningWindow(v) {
			// Delivery is best effort: on failure the flag stays false and a
			// later resync inside the window retries naturally.
			row.NotificationSent = e.notifier.NotifyEoLEcosystem(ctx, team, svc, dep, v)
		}
		if err := e.store.CreateEcosystemEoLDependency(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// matchPackageEoL links the dependency to every version window of a
// package-level EOL product its upstream version falls into.
func (e *Engine) matchPackageEoL(ctx context.Context, dep model.Dependency, pkg *model.Package, pv *model.PackageVersion, productPackage string, versions []model.EoLVersion, sent map[eolPair]bool) error {
	if pkg.Name != productPackage {
		return nil
	}
	family := ecosystem.Classify(pkg.Ecosystem)
	for _, v := range versions {
		matched, err := version.MatchesEOL(family, pv.Version, v.MatchingVersion)
		if err != nil {
			e.logger.Warnw("eol version comparison failed", "dependency_id", dep.Key, "version", pv.Version, "error", err)
			continue
		}
		if !matched {
			continue
		}
		row := &model.PackageEoLDependency{
			DependencyID:     dep.Key,
			EoLVersionID:     v.Key,
			NotificationSent: sent[eolPair{ownerID: dep.Key, eolVersionID: v.Key}],
			ObjType:          "PackageEoLDependency",
			CreatedAt:        e.now(),
		}
		if err := e.store.CreatePackageEoLDependency(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) withinWarningWindow(v model.EoLVersion) bool {
	return v.EoLFrom.Before(e.now().Add(e.eolWarningWindow))
}
