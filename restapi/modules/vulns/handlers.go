// Package vulns implements the REST API handlers for vulnerability ingestion.
package vulns

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/osv-scanner/pkg/models"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
	"github.com/nttcom/threatconnectome-sub003/internal/osv"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/model"
	"github.com/nttcom/threatconnectome-sub003/util"
)

// ProcessVulnUpsert encapsulates the core logic for ingesting one OSV record:
// package resolution, fingerprint deduplication, persistence, and threat
// reconciliation. Shared by the REST handler and the Kafka event processor so
// both paths behave identically.
func ProcessVulnUpsert(ctx context.Context, store *database.Store, engine *reconcile.Engine, record *models.Vulnerability) (string, bool, error) {
	converted, err := osv.Convert(record)
	if err != nil {
		return "", false, fmt.Errorf("convert osv record: %w", err)
	}

	affects := make([]model.Affect, 0, len(converted.Affects))
	for _, input := range converted.Affects {
		pkg := newPackageFor(input.Ecosystem, input.PackageName)
		ensured, err := store.EnsurePackage(ctx, pkg)
		if err != nil {
			return "", false, fmt.Errorf("ensure package %s/%s: %w", input.Ecosystem, input.PackageName, err)
		}
		affects = append(affects, *model.NewAffect("", ensured.Key, input.AffectedVersions, input.FixedVersions))
	}

	fingerprint := model.ContentFingerprint(converted.Vuln, affects)

	existing, err := store.FindVulnByAdvisoryID(ctx, converted.Vuln.AdvisoryID)
	if err != nil {
		return "", false, fmt.Errorf("advisory lookup: %w", err)
	}
	if existing != nil {
		if existing.Fingerprint == fingerprint {
			// Same content re-delivered; nothing to do.
			return existing.Key, false, nil
		}
		// Feed correction: replace the record and its affects in place so
		// threats derived from the old ranges get re-evaluated and removed.
		updated := mergeFeedUpdate(existing, converted.Vuln, fingerprint)
		if err := store.UpdateVuln(ctx, updated); err != nil {
			return "", false, fmt.Errorf("update vuln %s: %w", updated.Key, err)
		}
		if err := store.ReplaceAffects(ctx, updated.Key, affects); err != nil {
			return "", false, err
		}
		if err := engine.ReconcileVuln(ctx, updated.Key); err != nil {
			return "", false, err
		}
		return updated.Key, false, nil
	}

	if byContent, err := store.FindVulnByFingerprint(ctx, fingerprint); err != nil {
		return "", false, fmt.Errorf("fingerprint lookup: %w", err)
	} else if byContent != nil {
		// Same content already ingested under another advisory id.
		return byContent.Key, false, nil
	}

	converted.Vuln.Fingerprint = fingerprint
	if err := store.CreateVuln(ctx, converted.Vuln); err != nil {
		return "", false, fmt.Errorf("create vuln: %w", err)
	}
	if err := store.ReplaceAffects(ctx, converted.Vuln.Key, affects); err != nil {
		return "", false, err
	}
	if err := engine.ReconcileVuln(ctx, converted.Vuln.Key); err != nil {
		return "", false, err
	}
	return converted.Vuln.Key, true, nil
}

// mergeFeedUpdate folds a corrected feed record into the stored vuln. The
// SSVC decision points and legacy threat impact are analyst-set, never fed,
// so they survive feed updates.
func mergeFeedUpdate(existing, incoming *model.Vuln, fingerprint string) *model.Vuln {
	updated := *incoming
	updated.Key = existing.Key
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Fingerprint = fingerprint
	updated.Exploitation = existing.Exploitation
	updated.Automatable = existing.Automatable
	updated.SafetyImpact = existing.SafetyImpact
	updated.ThreatImpact = existing.ThreatImpact
	return &updated
}

func newPackageFor(eco, name string) *model.Package {
	switch {
	case ecosystem.Classify(eco) == ecosystem.FamilyDebian,
		ecosystem.Classify(eco) == ecosystem.FamilyRPM,
		strings.HasPrefix(eco, "alpine"):
		return model.NewOSPackage(name, eco, nil)
	default:
		return model.NewLangPackage(name, eco)
	}
}

// PostVuln handles POST requests carrying an OSV-format vulnerability record.
func PostVuln(store *database.Store, engine *reconcile.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var record models.Vulnerability
		if err := c.BodyParser(&record); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if record.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Vulnerability id is required",
			})
		}

		vulnID, created, err := ProcessVulnUpsert(c.Context(), store, engine, &record)
		if err != nil {
			log.Printf("vuln upsert failed for %s: %v", record.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{
			"success": true,
			"vuln_id": vulnID,
			"created": created,
		})
	}
}

// SSVCRequest carries analyst-set decision points for a vuln. Absent fields
// keep their stored value.
type SSVCRequest struct {
	Exploitation  *model.Exploitation `json:"exploitation"`
	Automatable   *model.Automatable  `json:"automatable"`
	SafetyImpact  *model.SafetyImpact `json:"safety_impact"`
	ThreatImpact  *int                `json:"threat_impact"`
	HintForAction *string             `json:"hint_for_action"`
}

// applySSVC validates the requested decision points and writes them onto the
// vuln.
func applySSVC(vuln *model.Vuln, req SSVCRequest) error {
	if req.Exploitation != nil {
		if !req.Exploitation.Valid() {
			return fmt.Errorf("invalid exploitation %q", string(*req.Exploitation))
		}
		vuln.Exploitation = *req.Exploitation
	}
	if req.Automatable != nil {
		if !req.Automatable.Valid() {
			return fmt.Errorf("invalid automatable %q", string(*req.Automatable))
		}
		vuln.Automatable = *req.Automatable
	}
	if req.SafetyImpact != nil {
		if !req.SafetyImpact.Valid() {
			return fmt.Errorf("invalid safety_impact %q", string(*req.SafetyImpact))
		}
		vuln.SafetyImpact = *req.SafetyImpact
	}
	if req.ThreatImpact != nil {
		if *req.ThreatImpact < 1 || *req.ThreatImpact > 4 {
			return fmt.Errorf("threat_impact must be between 1 and 4, got %d", *req.ThreatImpact)
		}
		vuln.ThreatImpact = *req.ThreatImpact
	}
	if req.HintForAction != nil {
		vuln.HintForAction = *req.HintForAction
	}
	vuln.UpdatedAt = time.Now()
	return nil
}

// PatchVulnSSVC handles PATCH requests setting the SSVC decision points of a
// vuln, then re-runs reconciliation so existing tickets pick up the new
// priority and a hint change creates or removes them.
func PatchVulnSSVC(store *database.Store, engine *reconcile.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vuln, err := store.GetVulnByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		var req SSVCRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if err := applySSVC(vuln, req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		if err := store.UpdateVuln(c.Context(), vuln); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		if err := engine.ReconcileVuln(c.Context(), vuln.Key); err != nil {
			log.Printf("WARNING: reconciliation after SSVC update of %s failed: %v", vuln.Key, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"vuln":    vuln,
		})
	}
}

// GetVuln handles GET requests for one vulnerability with its affects.
func GetVuln(store *database.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vuln, err := store.GetVulnByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		affects, err := store.GetAffectsByVulnID(c.Context(), vuln.Key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success":         true,
			"vuln":            vuln,
			"severity_rating": util.GetSeverityRating(vuln.CVSSBaseScore),
			"affects":         affects,
		})
	}
}

// DeleteVuln withdraws a vulnerability: its threats and tickets are removed
// before the record itself.
func DeleteVuln(store *database.Store, engine *reconcile.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vulnID := c.Params("id")
		if _, err := store.GetVulnByID(c.Context(), vulnID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		if err := engine.RemoveVulnThreats(c.Context(), vulnID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		if err := store.DeleteVuln(c.Context(), vulnID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"success": true})
	}
}
