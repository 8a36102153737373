// Package vulnevents handles Kafka event processing for reported
// vulnerability records.
package vulnevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/osv-scanner/pkg/models"
)

// VulnService defines the interface for vulnerability ingestion operations.
type VulnService interface {
	UpsertVuln(ctx context.Context, record *models.Vulnerability) (string, bool, error)
}

// HandleVulnReportedWithService processes vuln reported events from Kafka.
func HandleVulnReportedWithService(ctx context.Context, msg []byte, service VulnService) error {
	var event VulnReportedEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return fmt.Errorf("failed to unmarshal VulnReportedEvent: %w", err)
	}

	if event.Record.ID == "" {
		return fmt.Errorf("invalid event: missing record id")
	}

	log.Printf("Processing vuln %s (feed=%s)", event.Record.ID, event.Feed)

	vulnID, created, err := service.UpsertVuln(ctx, &event.Record)
	if err != nil {
		return fmt.Errorf("internal service error: %w", err)
	}

	if created {
		log.Printf("Successfully ingested vuln %s as %s", event.Record.ID, vulnID)
	} else {
		log.Printf("Vuln %s already known as %s", event.Record.ID, vulnID)
	}
	return nil
}
