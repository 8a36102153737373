// Package vulnevents defines types for Kafka event processing of reported
// vulnerability records.
package vulnevents

import (
	"time"

	"github.com/google/osv-scanner/pkg/models"
)

// VulnReportedEvent represents an OSV record published to Kafka by an upstream
// feed collector.
type VulnReportedEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	// Feed names the upstream source (e.g. "osv.dev", "ghsa").
	Feed string `json:"feed,omitempty"`

	Record models.Vulnerability `json:"record"`
}
