package ticket

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/model"
)

// Store is the persistence the deriver needs; simple key lookups and
// inserts/deletes only.
type Store interface {
	GetVulnByID(ctx context.Context, id string) (*model.Vuln, error)
	GetPackageVersionByID(ctx context.Context, id string) (*model.PackageVersion, error)
	GetDependenciesByPackageVersion(ctx context.Context, packageVersionID string) ([]model.Dependency, error)
	GetServiceByID(ctx context.Context, id string) (*model.Service, error)
	GetTeamByID(ctx context.Context, id string) (*model.Team, error)
	GetTicketByThreatID(ctx context.Context, threatID string) (*model.Ticket, error)
	CreateTicket(ctx context.Context, t *model.Ticket) error
	UpdateTicket(ctx context.Context, t *model.Ticket) error
	CreateTicketStatus(ctx context.Context, s *model.TicketStatus) error
	DeleteTicketByThreatID(ctx context.Context, threatID string) error
}

// Alerter announces freshly created tickets to the owning team. Delivery is
// best effort; a failed alert never blocks ticket creation.
type Alerter interface {
	NotifyTicketAlert(ctx context.Context, team *model.Team, svc *model.Service, vuln *model.Vuln, ticket *model.Ticket) error
}

// Deriver decides whether a threat warrants a ticket and computes its
// SSVC deployer priority.
type Deriver struct {
	store   Store
	catalog *Catalog
	logger  *zap.SugaredLogger
	alerter Alerter
}

// NewDeriver creates a deriver over the given store and decision catalog.
func NewDeriver(store Store, catalog *Catalog, logger *zap.SugaredLogger) *Deriver {
	return &Deriver{store: store, catalog: catalog, logger: logger}
}

// SetAlerter enables new-ticket alerts. Without one, tickets are created
// silently.
func (d *Deriver) SetAlerter(a Alerter) {
	d.alerter = a
}

// EnsureTicket creates the ticket for a threat when the vuln carries
// remediation guidance, removes a stale one when it does not, and refreshes
// the priority of an existing ticket when the decision inputs changed.
// Safe to call repeatedly for the same threat.
func (d *Deriver) EnsureTicket(ctx context.Context, threat *model.Threat) error {
	vuln, err := d.store.GetVulnByID(ctx, threat.VulnID)
	if err != nil {
		return fmt.Errorf("get vuln %s: %w", threat.VulnID, err)
	}

	if vuln.HintForAction == "" {
		// No actionable guidance, no ticket.
		if err := d.store.DeleteTicketByThreatID(ctx, threat.Key); err != nil {
			return fmt.Errorf("delete ticket for threat %s: %w", threat.Key, err)
		}
		return nil
	}

	existing, err := d.store.GetTicketByThreatID(ctx, threat.Key)
	if err != nil {
		return fmt.Errorf("get ticket for threat %s: %w", threat.Key, err)
	}

	priority, err := d.computePriority(ctx, threat, vuln)
	if err != nil {
		return fmt.Errorf("compute priority for threat %s: %w", threat.Key, err)
	}

	if existing != nil {
		if existing.SSVCDeployerPriority == priority {
			return nil
		}
		existing.SSVCDeployerPriority = priority
		if err := d.store.UpdateTicket(ctx, existing); err != nil {
			return fmt.Errorf("update ticket %s: %w", existing.Key, err)
		}
		d.logger.Infow("ticket priority updated", "threat_id", threat.Key, "ticket_id", existing.Key, "priority", priority)
		return nil
	}

	t := model.NewTicket(threat.Key, priority)
	if err := d.store.CreateTicket(ctx, t); err != nil {
		return fmt.Errorf("create ticket for threat %s: %w", threat.Key, err)
	}
	if err := d.store.CreateTicketStatus(ctx, model.NewTicketStatus(t.Key)); err != nil {
		return fmt.Errorf("create ticket status for ticket %s: %w", t.Key, err)
	}
	d.logger.Infow("ticket created", "threat_id", threat.Key, "ticket_id", t.Key, "priority", priority)
	d.alert(ctx, threat, vuln, t)
	return nil
}

// alert announces the new ticket to the first service depending on the
// threatened package version. Best effort.
func (d *Deriver) alert(ctx context.Context, threat *model.Threat, vuln *model.Vuln, t *model.Ticket) {
	if d.alerter == nil {
		return
	}
	var svc *model.Service
	var team *model.Team
	if deps, err := d.store.GetDependenciesByPackageVersion(ctx, threat.PackageVersionID); err == nil && len(deps) > 0 {
		if svc, _ = d.store.GetServiceByID(ctx, deps[0].ServiceID); svc != nil {
			team, _ = d.store.GetTeamByID(ctx, svc.TeamID)
		}
	}
	if err := d.alerter.NotifyTicketAlert(ctx, team, svc, vuln, t); err != nil {
		d.logger.Warnw("ticket alert failed", "ticket_id", t.Key, "error", err)
	}
}

// RemoveTicket deletes the ticket of a deleted threat, if one exists.
func (d *Deriver) RemoveTicket(ctx context.Context, threatID string) error {
	return d.store.DeleteTicketByThreatID(ctx, threatID)
}

// computePriority evaluates the SSVC decision table against every service
// depending on the threatened package version and keeps the most urgent
// outcome. When the full SSVC inputs are unavailable it falls back to the
// legacy threat-impact tiers.
func (d *Deriver) computePriority(ctx context.Context, threat *model.Threat, vuln *model.Vuln) (model.SSVCPriority, error) {
	if vuln.Exploitation == "" || vuln.Automatable == "" || vuln.SafetyImpact == "" {
		return LegacyPriority(vuln.ThreatImpact), nil
	}

	deps, err := d.store.GetDependenciesByPackageVersion(ctx, threat.PackageVersionID)
	if err != nil {
		return "", fmt.Errorf("get dependencies of package version %s: %w", threat.PackageVersionID, err)
	}
	if len(deps) == 0 {
		return LegacyPriority(vuln.ThreatImpact), nil
	}

	best := model.SSVCDefer
	for _, dep := range deps {
		svc, err := d.store.GetServiceByID(ctx, dep.ServiceID)
		if err != nil {
			return "", fmt.Errorf("get service %s: %w", dep.ServiceID, err)
		}

		mission := dep.EffectiveMissionImpact(svc)
		humanImpact, err := d.catalog.HumanImpactOf(vuln.SafetyImpact, mission)
		if err != nil {
			return "", err
		}
		priority, err := d.catalog.DeployerPriority(vuln.Exploitation, svc.Exposure, vuln.Automatable, humanImpact)
		if err != nil {
			return "", err
		}
		if priority.MoreUrgentThan(best) {
			best = priority
		}
	}
	return best, nil
}
