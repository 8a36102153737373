// Package vulnevents handles Kafka event production for reported
// vulnerability records.
package vulnevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// VulnProducer handles sending vuln reported events to Kafka
type VulnProducer struct {
	Writer *kafka.Writer
}

// NewVulnProducer initializes a new Kafka writer for vuln events
func NewVulnProducer(brokers []string, topic string) *VulnProducer {
	return &VulnProducer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishVulnReported sends the event to the Kafka topic
func (p *VulnProducer) PublishVulnReported(ctx context.Context, feed string, record *models.Vulnerability) error {
	event := VulnReportedEvent{
		EventType:     "vuln.reported",
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Feed:          feed,
		Record:        *record,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *VulnProducer) Close() error {
	return p.Writer.Close()
}
