package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/internal/rangematch"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// DefaultEoLWarningWindow is how far ahead of an EOL date the warning fires.
const DefaultEoLWarningWindow = 180 * 24 * time.Hour

// Engine drives threat and EOL reconciliation against the store. All methods
// are idempotent; re-running them over unchanged data is a no-op.
type Engine struct {
	store            Store
	tickets          TicketDeriver
	notifier         Notifier
	eolWarningWindow time.Duration
	progressInterval time.Duration
	logger           *zap.SugaredLogger
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithEoLWarningWindow overrides the default 180 day warning window.
func WithEoLWarningWindow(d time.Duration) Option {
	return func(e *Engine) { e.eolWarningWindow = d }
}

// WithProgressInterval overrides how often bulk runs log progress.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) { e.progressInterval = d }
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the store, cascading ticket derivation and
// EOL notifications through the given collaborators.
func NewEngine(store Store, tickets TicketDeriver, notifier Notifier, logger *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		tickets:          tickets,
		notifier:         notifier,
		eolWarningWindow: DefaultEoLWarningWindow,
		progressInterval: 30 * time.Second,
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReconcileVuln re-evaluates every package version covered by the vuln's
// affects and transitions threat rows to match. A failure on one pair is
// logged and does not block the remaining pairs.
func (e *Engine) ReconcileVuln(ctx context.Context, vulnID string) error {
	vuln, err := e.store.GetVulnByID(ctx, vulnID)
	if err != nil {
		return fmt.Errorf("reconcile vuln %s: %w", vulnID, err)
	}

	affects, err := e.store.GetAffectsByVulnID(ctx, vuln.Key)
	if err != nil {
		return fmt.Errorf("get affects of vuln %s: %w", vuln.Key, err)
	}

	// Feeds record affects at advisory granularity (rocky-9) while
	// dependencies carry patch-level tags (rocky-9.3), so affects are grouped
	// by the normalized matching key and fanned out to every package sharing
	// it, not just the exact package the affect points at.
	type matchIdentity struct {
		ecosystem string
		name      string
	}
	affectsByIdentity := make(map[matchIdentity][]model.Affect)
	for _, a := range affects {
		pkg, err := e.store.GetPackageByID(ctx, a.PackageID)
		if err != nil {
			e.logger.Warnw("skipping affect with unresolvable package", "package_id", a.PackageID, "vuln_id", vuln.Key, "error", err)
			continue
		}
		id := matchIdentity{ecosystem: pkg.VulnMatchingEcosystem(), name: pkg.Name}
		affectsByIdentity[id] = append(affectsByIdentity[id], a)
	}

	type pvEval struct {
		pkg     *model.Package
		pv      model.PackageVersion
		affects []model.Affect
	}
	var work []pvEval
	for id, idAffects := range affectsByIdentity {
		pkgs, err := e.store.GetPackagesByVulnMatchingEcosystem(ctx, id.ecosystem, id.name)
		if err != nil {
			e.logger.Warnw("skipping package lookup by matching key", "matching_ecosystem", id.ecosystem, "package_name", id.name, "vuln_id", vuln.Key, "error", err)
			continue
		}
		for i := range pkgs {
			pvs, err := e.store.GetPackageVersionsByPackageID(ctx, pkgs[i].Key)
			if err != nil {
				e.logger.Warnw("skipping package versions lookup", "package_id", pkgs[i].Key, "vuln_id", vuln.Key, "error", err)
				continue
			}
			for _, pv := range pvs {
				work = append(work, pvEval{pkg: &pkgs[i], pv: pv, affects: idAffects})
			}
		}
	}

	progress := NewProgressReporter(e.logger, fmt.Sprintf("reconcile vuln %s", vuln.Key), len(work), e.progressInterval)
	defer progress.Stop()

	evaluated := make(map[string]bool, len(work))
	for _, w := range work {
		evaluated[w.pv.Key] = true
		threatened := e.evaluate(w.pkg, w.pv.Version, w.affects)
		if threatened {
			if err := e.ensureThreat(ctx, w.pv.Key, vuln.Key); err != nil {
				e.logger.Warnw("threat creation failed", "package_version_id", w.pv.Key, "vuln_id", vuln.Key, "error", err)
			}
		} else {
			if err := e.removeThreat(ctx, w.pv.Key, vuln.Key); err != nil {
				e.logger.Warnw("threat removal failed", "package_version_id", w.pv.Key, "vuln_id", vuln.Key, "error", err)
			}
		}
		progress.Increment(1)
	}

	// Threat rows for pairs no affect covers anymore are stale.
	existing, err := e.store.GetThreatsByVulnID(ctx, vuln.Key)
	if err != nil {
		return fmt.Errorf("get threats of vuln %s: %w", vuln.Key, err)
	}
	for _, t := range existing {
		if evaluated[t.PackageVersionID] {
			continue
		}
		if err := e.deleteThreat(ctx, &t); err != nil {
			e.logger.Warnw("stale threat removal failed", "threat_id", t.Key, "error", err)
		}
	}
	return nil
}

// ReconcilePackageVersion re-evaluates one package version against every
// affect covering its package. Triggered on new dependency ingestion.
func (e *Engine) ReconcilePackageVersion(ctx context.Context, packageVersionID string) error {
	pv, err := e.store.GetPackageVersionByID(ctx, packageVersionID)
	if err != nil {
		return fmt.Errorf("reconcile package version %s: %w", packageVersionID, err)
	}
	pkg, err := e.store.GetPackageByID(ctx, pv.PackageID)
	if err != nil {
		return fmt.Errorf("get package %s: %w", pv.PackageID, err)
	}

	// Affects recorded under any package sharing the normalized matching key
	// apply to this version, not only those under the same raw distro tag.
	siblings, err := e.store.GetPackagesByVulnMatchingEcosystem(ctx, pkg.VulnMatchingEcosystem(), pkg.Name)
	if err != nil {
		return fmt.Errorf("get packages matching %s/%s: %w", pkg.VulnMatchingEcosystem(), pkg.Name, err)
	}
	if len(siblings) == 0 {
		siblings = []model.Package{*pkg}
	}
	var affects []model.Affect
	for _, sib := range siblings {
		sibAffects, err := e.store.GetAffectsByPackageID(ctx, sib.Key)
		if err != nil {
			return fmt.Errorf("get affects of package %s: %w", sib.Key, err)
		}
		affects = append(affects, sibAffects...)
	}

	affectsByVuln := make(map[string][]model.Affect)
	for _, a := range affects {
		affectsByVuln[a.VulnID] = append(affectsByVuln[a.VulnID], a)
	}

	for vulnID, vulnAffects := range affectsByVuln {
		if e.evaluate(pkg, pv.Version, vulnAffects) {
			if err := e.ensureThreat(ctx, pv.Key, vulnID); err != nil {
				e.logger.Warnw("threat creation failed", "package_version_id", pv.Key, "vuln_id", vulnID, "error", err)
			}
		} else {
			if err := e.removeThreat(ctx, pv.Key, vulnID); err != nil {
				e.logger.Warnw("threat removal failed", "package_version_id", pv.Key, "vuln_id", vulnID, "error", err)
			}
		}
	}

	// Threats pointing at vulns that no longer affect this package are stale.
	existing, err := e.store.GetThreatsByPackageVersionID(ctx, pv.Key)
	if err != nil {
		return fmt.Errorf("get threats of package version %s: %w", pv.Key, err)
	}
	for _, t := range existing {
		if _, ok := affectsByVuln[t.VulnID]; ok {
			continue
		}
		if err := e.deleteThreat(ctx, &t); err != nil {
			e.logger.Warnw("stale threat removal failed", "threat_id", t.Key, "error", err)
		}
	}
	return nil
}

// RemovePackageVersion deletes a package version together with its threats
// and their tickets.
func (e *Engine) RemovePackageVersion(ctx context.Context, packageVersionID string) error {
	threats, err := e.store.GetThreatsByPackageVersionID(ctx, packageVersionID)
	if err != nil {
		return fmt.Errorf("get threats of package version %s: %w", packageVersionID, err)
	}
	for _, t := range threats {
		if err := e.deleteThreat(ctx, &t); err != nil {
			return err
		}
	}
	if err := e.store.DeletePackageVersion(ctx, packageVersionID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("delete package version %s: %w", packageVersionID, err)
	}
	return nil
}

// RemoveVulnThreats deletes every threat of a vuln together with the tickets
// derived from them. Called when the vuln record itself is withdrawn.
func (e *Engine) RemoveVulnThreats(ctx context.Context, vulnID string) error {
	threats, err := e.store.GetThreatsByVulnID(ctx, vulnID)
	if err != nil {
		return fmt.Errorf("get threats of vuln %s: %w", vulnID, err)
	}
	for _, t := range threats {
		if err := e.deleteThreat(ctx, &t); err != nil {
			return err
		}
	}
	return nil
}

// evaluate reports whether the version is threatened by any of the affects.
// Unknown counts as threatened: an unparseable version or range must never
// silently clear a vulnerability.
func (e *Engine) evaluate(pkg *model.Package, versionStr string, affects []model.Affect) bool {
	for _, a := range affects {
		switch rangematch.Match(versionStr, pkg.Ecosystem, a.AffectedVersions) {
		case rangematch.Matched, rangematch.Unknown:
			return true
		}
	}
	return false
}

// ensureThreat inserts the threat row for the pair unless it already exists,
// then cascades ticket derivation. A conflicting concurrent insert is benign.
func (e *Engine) ensureThreat(ctx context.Context, packageVersionID, vulnID string) error {
	existing, err := e.store.GetThreatByPackageVersionAndVuln(ctx, packageVersionID, vulnID)
	if err != nil {
		return err
	}
	if existing == nil {
		t := model.NewThreat(packageVersionID, vulnID)
		if err := e.store.CreateThreat(ctx, t); err != nil {
			if !errors.Is(err, model.ErrConflict) {
				return err
			}
			// Another transaction won the insert race; fetch its row.
			if existing, err = e.store.GetThreatByPackageVersionAndVuln(ctx, packageVersionID, vulnID); err != nil {
				return err
			}
		} else {
			existing = t
			e.logger.Infow("threat created", "threat_id", t.Key, "package_version_id", packageVersionID, "vuln_id", vulnID)
		}
	}
	if existing == nil {
		return nil
	}
	return e.tickets.EnsureTicket(ctx, existing)
}

func (e *Engine) removeThreat(ctx context.Context, packageVersionID, vulnID string) error {
	existing, err := e.store.GetThreatByPackageVersionAndVuln(ctx, packageVersionID, vulnID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return e.deleteThreat(ctx, existing)
}

func (e *Engine) deleteThreat(ctx context.Context, t *model.Threat) error {
	if err := e.tickets.RemoveTicket(ctx, t.Key); err != nil {
		return fmt.Errorf("remove ticket of threat %s: %w", t.Key, err)
	}
	if err := e.store.DeleteThreat(ctx, t.Key); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("delete threat %s: %w", t.Key, err)
	}
	e.logger.Infow("threat removed", "threat_id", t.Key, "package_version_id", t.PackageVersionID, "vuln_id", t.VulnID)
	return nil
}
