// Package eol implements the REST API handlers for the end-of-life catalog.
package eol

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// ProductUpload is the request body for upserting one catalog product with its
// version windows.
type ProductUpload struct {
	Name        string          `json:"name"`
	Ecosystem   *string         `json:"ecosystem,omitempty"`
	PackageName *string         `json:"package_name,omitempty"`
	Versions    []VersionUpload `json:"versions"`
}

// VersionUpload is one version window of a product upload.
type VersionUpload struct {
	Name            string    `json:"name"`
	ReleaseDate     time.Time `json:"release_date"`
	EoLFrom         time.Time `json:"eol_from"`
	MatchingVersion string    `json:"matching_version"`
}

// PutProduct upserts a catalog product and resyncs every service against the
// updated catalog.
func PutProduct(store *database.Store, engine *reconcile.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ProductUpload
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if req.Name == "" || (req.Ecosystem == nil) == (req.PackageName == nil) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Product needs a name and exactly one of ecosystem or package_name",
			})
		}

		product := &model.EoLProduct{
			Name:        req.Name,
			Ecosystem:   req.Ecosystem,
			PackageName: req.PackageName,
			ObjType:     "EoLProduct",
		}
		versions := make([]model.EoLVersion, 0, len(req.Versions))
		for _, v := range req.Versions {
			versions = append(versions, model.EoLVersion{
				Name:            v.Name,
				ReleaseDate:     v.ReleaseDate,
				EoLFrom:         v.EoLFrom,
				MatchingVersion: v.MatchingVersion,
				ObjType:         "EoLVersion",
			})
		}

		if err := store.ReplaceEoLProduct(c.Context(), product, versions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		// A catalog change can open or close windows for any service.
		services, err := store.GetAllServices(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		for _, svc := range services {
			if err := engine.ResyncServiceEoL(c.Context(), svc.Key); err != nil {
				log.Printf("WARNING: eol resync of service %s failed: %v", svc.Key, err)
			}
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"product_id": product.Key,
		})
	}
}

// GetServiceEoL lists the EOL rows of a service.
func GetServiceEoL(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		serviceID := c.Params("id")
		ecoRows, err := store.GetEcosystemEoLDependenciesByServiceID(c.Context(), serviceID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		pkgRows, err := store.GetPackageEoLDependenciesByServiceID(c.Context(), serviceID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success":   true,
			"ecosystem": ecoRows,
			"package":   pkgRows,
		})
	}
}
