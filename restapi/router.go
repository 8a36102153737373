// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/eol"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/sbom"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/teams"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/tickets"
	"github.com/nttcom/threatconnectome-sub003/restapi/modules/vulns"
)

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
// CORS is handled globally in internal/api/fiber.go.
func SetupRoutes(app *fiber.App, store *database.Store, engine *reconcile.Engine, schema graphql.Schema) {

	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL Route - Mounted within the api group to inherit path prefixes
	api.Post("/graphql", GraphQLHandler(schema))

	// Team & service administration
	api.Post("/teams", teams.PostTeam(store))
	api.Post("/services", teams.PostService(store))
	api.Put("/services/:id", teams.PutService(store))

	// Vulnerability ingestion & analyst triage
	api.Post("/vulns", vulns.PostVuln(store, engine))
	api.Get("/vulns/:id", vulns.GetVuln(store))
	api.Patch("/vulns/:id/ssvc", vulns.PatchVulnSSVC(store, engine))
	api.Delete("/vulns/:id", vulns.DeleteVuln(store, engine))

	// Dependency ingestion & queries
	api.Post("/services/:id/artifacts", sbom.PostServiceArtifacts(store, engine))
	api.Get("/services/:id/dependencies", sbom.GetServiceDependencies(store))

	// End-of-life catalog
	api.Put("/eol/products", eol.PutProduct(store, engine))
	api.Get("/services/:id/eol", eol.GetServiceEoL(store))

	// Tickets
	api.Get("/services/:id/tickets", tickets.GetServiceTickets(store))
	api.Patch("/tickets/:id/status", tickets.PatchTicketStatus(store))

	log.Println("API routes initialized successfully")
}
