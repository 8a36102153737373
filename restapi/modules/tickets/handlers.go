// Package tickets implements the REST API handlers for ticket queries and
// handling-status updates.
package tickets

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// GetServiceTickets lists the tickets touching a service, joined with their
// vuln and package context.
func GetServiceTickets(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := store.GetTicketsByServiceID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"tickets": rows,
		})
	}
}

// StatusUpdate is the request body for a handling-status change.
type StatusUpdate struct {
	HandlingStatus model.HandlingStatus `json:"handling_status"`
	Assignees      []string             `json:"assignees"`
	ScheduledAt    *time.Time           `json:"scheduled_at,omitempty"`
}

var validHandlingStatuses = map[model.HandlingStatus]bool{
	model.HandlingAlerted:      true,
	model.HandlingAcknowledged: true,
	model.HandlingScheduled:    true,
	model.HandlingCompleted:    true,
}

// PatchTicketStatus updates the handling status of a ticket.
func PatchTicketStatus(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req StatusUpdate
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if !validHandlingStatuses[req.HandlingStatus] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Unknown handling status",
			})
		}

		ticket, err := store.GetTicketByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		status, err := store.GetTicketStatus(c.Context(), ticket.Key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		status.HandlingStatus = req.HandlingStatus
		if req.Assignees != nil {
			status.Assignees = req.Assignees
		}
		status.ScheduledAt = req.ScheduledAt
		status.UpdatedAt = time.Now()

		if err := store.UpdateTicketStatus(c.Context(), status); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"status":  status,
		})
	}
}
