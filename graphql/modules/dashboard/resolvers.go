// Package dashboard implements the resolvers for dashboard metrics.
package dashboard

import (
	"context"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// ResolveOverview handles fetching the high-level dashboard metrics
func ResolveOverview(ctx context.Context, store *database.Store) (interface{}, error) {
	counts, err := store.CollectionCounts(ctx, "service", "vuln", "ticket")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"total_services": counts["service"],
		"total_vulns":    counts["vuln"],
		"total_tickets":  counts["ticket"],
	}, nil
}

// ResolvePriorityDistribution fetches the current breakdown of open tickets by
// SSVC priority
func ResolvePriorityDistribution(ctx context.Context, store *database.Store) (interface{}, error) {
	counts, err := store.TicketCountsByPriority(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"immediate":    counts[model.SSVCImmediate],
		"out_of_cycle": counts[model.SSVCOutOfCycle],
		"scheduled":    counts[model.SSVCScheduled],
		"defer":        counts[model.SSVCDefer],
	}, nil
}

// ResolveTopThreatenedServices fetches the services carrying the most threats
func ResolveTopThreatenedServices(ctx context.Context, store *database.Store, limit int) (interface{}, error) {
	rows, err := store.TopThreatenedServices(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]interface{}{
			"service_id":   r.ServiceID,
			"service_name": r.ServiceName,
			"threat_count": r.ThreatCount,
		})
	}
	return out, nil
}

// ResolveServiceTickets fetches the joined ticket rows of one service
func ResolveServiceTickets(ctx context.Context, store *database.Store, serviceID string) (interface{}, error) {
	rows, err := store.GetTicketsByServiceID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		handling := ""
		if r.Status != nil {
			handling = string(r.Status.HandlingStatus)
		}
		out = append(out, map[string]interface{}{
			"ticket_id":       r.Ticket.Key,
			"vuln_id":         r.Vuln.Key,
			"title":           r.Vuln.Title,
			"priority":        string(r.Ticket.SSVCDeployerPriority),
			"handling_status": handling,
			"package_name":    r.PackageName,
			"ecosystem":       r.Ecosystem,
			"version":         r.Version,
			"cvss_score":      r.Vuln.CVSSBaseScore,
		})
	}
	return out, nil
}
