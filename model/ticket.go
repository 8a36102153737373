package model

import (
	"fmt"
	"time"
)

// SSVCPriority is the SSVC deployer priority computed for a ticket.
type SSVCPriority string

const (
	// SSVCImmediate means act now, ahead of planned work.
	SSVCImmediate SSVCPriority = "immediate"
	// SSVCOutOfCycle means remediate faster than the regular cycle.
	SSVCOutOfCycle SSVCPriority = "out_of_cycle"
	// SSVCScheduled means remediate during regularly scheduled maintenance.
	SSVCScheduled SSVCPriority = "scheduled"
	// SSVCDefer means no action for now.
	SSVCDefer SSVCPriority = "defer"
)

var ssvcPriorityOrder = map[SSVCPriority]int{
	SSVCImmediate:  0,
	SSVCOutOfCycle: 1,
	SSVCScheduled:  2,
	SSVCDefer:      3,
}

// Compare orders priorities from most urgent (immediate) to most lax (defer).
// Comparing against a value that is not a defined priority fails.
func (p SSVCPriority) Compare(other SSVCPriority) (int, error) {
	a, ok := ssvcPriorityOrder[p]
	if !ok {
		return 0, fmt.Errorf("not an SSVC priority: %q", string(p))
	}
	b, ok := ssvcPriorityOrder[other]
	if !ok {
		return 0, fmt.Errorf("not an SSVC priority: %q", string(other))
	}
	return a - b, nil
}

// MoreUrgentThan reports whether p outranks other. Undefined values order last.
func (p SSVCPriority) MoreUrgentThan(other SSVCPriority) bool {
	cmp, err := p.Compare(other)
	if err != nil {
		return false
	}
	return cmp < 0
}

// Valid reports whether p is one of the defined priorities.
func (p SSVCPriority) Valid() bool {
	_, ok := ssvcPriorityOrder[p]
	return ok
}

// HandlingStatus tracks how far a team has taken a ticket.
type HandlingStatus string

const (
	// HandlingAlerted means the team has been notified, nothing else.
	HandlingAlerted HandlingStatus = "alerted"
	// HandlingAcknowledged means someone owns the ticket.
	HandlingAcknowledged HandlingStatus = "acknowledged"
	// HandlingScheduled means remediation is planned.
	HandlingScheduled HandlingStatus = "scheduled"
	// HandlingCompleted means remediation is done.
	HandlingCompleted HandlingStatus = "completed"
)

// Ticket is the actionable remediation item derived from a Threat, created
// only when the vuln carries remediation guidance.
type Ticket struct {
	Key                  string       `json:"_key,omitempty"`
	ThreatID             string       `json:"threat_id"`
	SSVCDeployerPriority SSVCPriority `json:"ssvc_deployer_priority"`
	ObjType              string       `json:"objtype,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// NewTicket creates a ticket for a threat.
func NewTicket(threatID string, priority SSVCPriority) *Ticket {
	return &Ticket{
		ThreatID:             threatID,
		SSVCDeployerPriority: priority,
		ObjType:              "Ticket",
		CreatedAt:            time.Now(),
	}
}

// TicketStatus is the handling state of a ticket.
type TicketStatus struct {
	Key            string         `json:"_key,omitempty"`
	TicketID       string         `json:"ticket_id"`
	HandlingStatus HandlingStatus `json:"handling_status"`
	Assignees      []string       `json:"assignees"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	ObjType        string         `json:"objtype,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewTicketStatus creates the initial status for a freshly derived ticket.
func NewTicketStatus(ticketID string) *TicketStatus {
	return &TicketStatus{
		TicketID:       ticketID,
		HandlingStatus: HandlingAlerted,
		Assignees:      []string{},
		ObjType:        "TicketStatus",
		UpdatedAt:      time.Now(),
	}
}
