// Package sbom implements the REST API handlers for dependency ingestion.
// SBOM documents are decomposed into artifacts upstream; this module maps
// artifacts onto a service's dependency set and reconciles the consequences.
package sbom

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/model"
	"github.com/nttcom/threatconnectome-sub003/util"
)

// ArtifactUpload is the request body for replacing a service's dependencies.
type ArtifactUpload struct {
	Artifacts []model.Artifact `json:"artifacts"`
}

// ProcessArtifacts replaces the dependency set of a service with the uploaded
// artifacts: new package versions are reconciled against known vulns, edges
// gone from the upload are removed, orphaned package versions are deleted with
// their threats, and the EOL rows of the service are rebuilt. Shared by the
// REST handler and the Kafka event processor.
func ProcessArtifacts(ctx context.Context, store *database.Store, engine *reconcile.Engine, serviceID string, artifacts []model.Artifact) error {
	svc, err := store.GetServiceByID(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("load service %s: %w", serviceID, err)
	}

	existing, err := store.GetDependenciesByServiceID(ctx, svc.Key)
	if err != nil {
		return fmt.Errorf("load dependencies of service %s: %w", svc.Key, err)
	}

	type depIdentity struct {
		packageVersionID string
		target           string
	}
	stale := make(map[depIdentity]model.Dependency, len(existing))
	for _, d := range existing {
		stale[depIdentity{packageVersionID: d.PackageVersionID, target: d.Target}] = d
	}

	var newVersionIDs []string
	for _, artifact := range artifacts {
		if util.IsEmpty(artifact.PackageName) && util.IsNotEmpty(artifact.PURL) {
			if err := resolvePURL(&artifact); err != nil {
				return fmt.Errorf("resolve purl %s: %w", artifact.PURL, err)
			}
		}
		pkg := newPackageFor(artifact)
		ensuredPkg, err := store.EnsurePackage(ctx, pkg)
		if err != nil {
			return fmt.Errorf("ensure package %s/%s: %w", artifact.Ecosystem, artifact.PackageName, err)
		}

		for _, ref := range artifact.References {
			pv, err := store.FindPackageVersion(ctx, ensuredPkg.Key, ref.Version)
			if err != nil {
				return err
			}
			if pv == nil {
				pv = model.NewPackageVersion(ensuredPkg.Key, ref.Version)
				if pv, err = store.EnsurePackageVersion(ctx, pv); err != nil {
					return fmt.Errorf("ensure package version %s@%s: %w", ensuredPkg.Name, ref.Version, err)
				}
				newVersionIDs = append(newVersionIDs, pv.Key)
			}

			id := depIdentity{packageVersionID: pv.Key, target: ref.Target}
			if _, ok := stale[id]; ok {
				// Edge survives the upload unchanged.
				delete(stale, id)
				continue
			}
			dep := model.NewDependency(svc.Key, pv.Key, ref.Target, artifact.PackageManager, ref.Version)
			if err := store.CreateDependency(ctx, dep); err != nil {
				return fmt.Errorf("create dependency: %w", err)
			}
		}
	}

	// Edges absent from the upload are gone from the service.
	for _, dep := range stale {
		if err := store.DeleteDependency(ctx, dep.Key); err != nil {
			return fmt.Errorf("delete dependency %s: %w", dep.Key, err)
		}
		remaining, err := store.GetDependenciesByPackageVersion(ctx, dep.PackageVersionID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			// Nobody depends on this version anymore; drop it with its threats.
			if err := engine.RemovePackageVersion(ctx, dep.PackageVersionID); err != nil {
				return err
			}
		}
	}

	for _, pvID := range newVersionIDs {
		if err := engine.ReconcilePackageVersion(ctx, pvID); err != nil {
			log.Printf("WARNING: reconciliation of package version %s failed: %v", pvID, err)
		}
	}

	return engine.ResyncServiceEoL(ctx, svc.Key)
}

// purlOSTypes are PURL types whose namespace carries the distribution name.
var purlOSTypes = []string{"deb", "rpm", "apk"}

// resolvePURL fills in PackageName and Ecosystem from the artifact's PURL.
// For OS package types the namespace names the distribution; for language
// packages the namespace is part of the package name (npm scopes, Go module
// paths).
func resolvePURL(artifact *model.Artifact) error {
	cleaned, err := util.CleanPURL(artifact.PURL)
	if err != nil {
		return err
	}
	parsed, err := util.ParsePURL(cleaned)
	if err != nil {
		return err
	}

	if util.Contains(purlOSTypes, parsed.Type) {
		artifact.PackageName = parsed.Name
		artifact.Ecosystem = parsed.Namespace
		return nil
	}

	name := parsed.Name
	if parsed.Namespace != "" {
		name = parsed.Namespace + "/" + parsed.Name
	}
	artifact.PackageName = name
	artifact.Ecosystem = parsed.Type
	return nil
}

func newPackageFor(artifact model.Artifact) *model.Package {
	fam := ecosystem.Classify(artifact.Ecosystem)
	if fam == ecosystem.FamilyDebian || fam == ecosystem.FamilyRPM || strings.HasPrefix(artifact.Ecosystem, "alpine") {
		return model.NewOSPackage(artifact.PackageName, artifact.Ecosystem, artifact.SourceName)
	}
	return model.NewLangPackage(artifact.PackageName, artifact.Ecosystem)
}

// PostServiceArtifacts handles POST requests replacing a service's
// dependencies with an artifact list.
func PostServiceArtifacts(store *database.Store, engine *reconcile.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ArtifactUpload
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		serviceID := c.Params("id")
		if err := ProcessArtifacts(c.Context(), store, engine, serviceID, req.Artifacts); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Artifacts processed successfully",
		})
	}
}

// GetServiceDependencies lists the dependency edges of a service.
func GetServiceDependencies(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps, err := store.GetDependenciesByServiceID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success":      true,
			"dependencies": deps,
		})
	}
}
