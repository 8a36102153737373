// Package teams implements the REST API handlers for team and service
// administration. Kept minimal: the records exist so ingestion and
// notification have owners to hang off.
package teams

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// TeamRequest is the request body for creating a team.
type TeamRequest struct {
	Name         string `json:"name"`
	SlackChannel string `json:"slack_channel,omitempty"`
}

// PostTeam creates a team.
func PostTeam(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req TeamRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Team name is required",
			})
		}

		team := &model.Team{Name: req.Name, SlackChannel: req.SlackChannel, ObjType: "Team"}
		if err := store.CreateTeam(c.Context(), team); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"team_id": team.Key,
		})
	}
}

// ServiceRequest is the request body for creating or updating a service.
type ServiceRequest struct {
	TeamID               string               `json:"team_id"`
	Name                 string               `json:"name"`
	Exposure             model.Exposure       `json:"exposure,omitempty"`
	DefaultMissionImpact *model.MissionImpact `json:"default_mission_impact,omitempty"`
}

// PostService creates a service under a team.
func PostService(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ServiceRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if req.TeamID == "" || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "team_id and name are required",
			})
		}
		if _, err := store.GetTeamByID(c.Context(), req.TeamID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		svc := model.NewService(req.TeamID, req.Name)
		if req.Exposure != "" {
			svc.Exposure = req.Exposure
		}
		if req.DefaultMissionImpact != nil {
			svc.DefaultMissionImpact = *req.DefaultMissionImpact
		}
		if err := store.CreateService(c.Context(), svc); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":    true,
			"service_id": svc.Key,
		})
	}
}

// PutService updates the SSVC exposure and default mission impact of a
// service.
func PutService(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ServiceRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		svc, err := store.GetServiceByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		if req.Name != "" {
			svc.Name = req.Name
		}
		if req.Exposure != "" {
			svc.Exposure = req.Exposure
		}
		if req.DefaultMissionImpact != nil {
			svc.DefaultMissionImpact = *req.DefaultMissionImpact
		}
		if err := store.UpdateService(c.Context(), svc); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"service": svc,
		})
	}
}
