// Package services provides internal service implementations for the backend.
package services

import (
	"context"
	"log"

	"github.com/google/osv-scanner/pkg/models"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/vulns"
)

// VulnServiceWrapper implements vulnevents.VulnService
type VulnServiceWrapper struct {
	Store  *database.Store
	Engine *reconcile.Engine
}

// UpsertVuln processes a reported OSV record by delegating to the shared core
// logic in the vulns module. This ensures that Kafka-driven ingestion performs
// the same package resolution, fingerprint deduplication, and threat
// reconciliation as the REST API.
func (w *VulnServiceWrapper) UpsertVuln(ctx context.Context, record *models.Vulnerability) (string, bool, error) {
	log.Printf("Worker: Processing vuln ingestion for %s", record.ID)
	return vulns.ProcessVulnUpsert(ctx, w.Store, w.Engine, record)
}
