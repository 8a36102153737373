// Package osv converts OSV feed records into vulnerability and affect rows.
package osv

import (
	"fmt"
	"strings"

	"github.com/google/osv-scanner/pkg/models"

	"github.com/nttcom/threatconnectome-sub003/model"
	"github.com/nttcom/threatconnectome-sub003/util"
)

// AffectInput is one affect row before package resolution: the caller maps
// (Ecosystem, PackageName) onto a stored package and fills in its id.
type AffectInput struct {
	Ecosystem        string
	PackageName      string
	AffectedVersions []string
	FixedVersions    []string
}

// ConvertedVuln is the outcome of converting one OSV record.
type ConvertedVuln struct {
	Vuln    *model.Vuln
	Affects []AffectInput
}

// Convert maps an OSV record onto a vuln and its affect inputs. Records with
// no affected packages convert to a vuln with no affects; git-only ranges are
// skipped.
func Convert(osv *models.Vulnerability) (*ConvertedVuln, error) {
	if osv.ID == "" {
		return nil, fmt.Errorf("osv record has no id")
	}

	title := osv.Summary
	if title == "" {
		title = osv.ID
	}
	vuln := model.NewVuln(title, osv.Details)
	vuln.AdvisoryID = osv.ID
	vuln.CVSSBaseScore = util.HighestCVSSScore(osv.Severity)

	var affects []AffectInput
	var allFixed []string
	for _, affected := range osv.Affected {
		pkg := affected.Package
		if pkg.Name == "" && pkg.Purl != "" {
			// Some feeds identify the package only by PURL.
			if base, err := util.GetBasePURL(pkg.Purl); err == nil {
				if parsed, err := util.ParsePURL(base); err == nil {
					pkg.Name = parsed.Name
					if parsed.Namespace != "" {
						pkg.Name = parsed.Namespace + "/" + parsed.Name
					}
					if pkg.Ecosystem == "" {
						pkg.Ecosystem = models.Ecosystem(parsed.Type)
					}
				}
			}
		}
		if pkg.Name == "" {
			continue
		}
		input := AffectInput{
			Ecosystem:   NormalizeEcosystem(string(pkg.Ecosystem)),
			PackageName: pkg.Name,
		}

		for _, v := range affected.Versions {
			input.AffectedVersions = append(input.AffectedVersions, "= "+v)
		}
		for _, r := range affected.Ranges {
			if r.Type != models.RangeEcosystem && r.Type != models.RangeSemVer {
				continue
			}
			groups, fixed := rangeToGroups(r)
			input.AffectedVersions = append(input.AffectedVersions, groups...)
			input.FixedVersions = append(input.FixedVersions, fixed...)
		}

		allFixed = append(allFixed, input.FixedVersions...)
		affects = append(affects, input)
	}

	if len(allFixed) > 0 {
		vuln.HintForAction = "Update the affected packages to a fixed version: " + strings.Join(dedupe(allFixed), ", ")
	}

	return &ConvertedVuln{Vuln: vuln, Affects: affects}, nil
}

// rangeToGroups flattens one OSV event range into AND-joined comparison
// groups. Each introduced event opens a window that the next fixed or
// last_affected event closes. An introduced value of "0" means from the
// beginning, so the window has no lower bound.
func rangeToGroups(r models.Range) (groups []string, fixed []string) {
	var terms []string
	flush := func() {
		if len(terms) > 0 {
			groups = append(groups, strings.Join(terms, ", "))
			terms = nil
		}
	}

	for _, event := range r.Events {
		switch {
		case event.Introduced != "":
			flush()
			if event.Introduced != "0" {
				terms = append(terms, ">= "+event.Introduced)
			}
		case event.Fixed != "":
			terms = append(terms, "< "+event.Fixed)
			fixed = append(fixed, event.Fixed)
			flush()
		case event.LastAffected != "":
			terms = append(terms, "<= "+event.LastAffected)
			flush()
		}
	}
	flush()
	return groups, fixed
}

// osvEcosystemNames maps OSV distribution names onto the short tags used in
// package records.
var osvEcosystemNames = map[string]string{
	"almalinux":   "alma",
	"rocky linux": "rocky",
	"red hat":     "rhel",
	"amazon":      "amazon",
	"go":          "golang",
	"crates.io":   "cargo",
}

// NormalizeEcosystem converts an OSV ecosystem label into the tag used by
// package records: lowercased, with the release suffix attached by a dash.
// Examples: "Debian:12" -> "debian-12", "Rocky Linux:9" -> "rocky-9",
// "Alpine:v3.22" -> "alpine-3.22", "PyPI" -> "pypi".
func NormalizeEcosystem(ecosystem string) string {
	name, release, _ := strings.Cut(ecosystem, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	if mapped, ok := osvEcosystemNames[name]; ok {
		name = mapped
	}
	name = strings.ReplaceAll(name, " ", "")

	if release == "" {
		return name
	}
	release = strings.TrimPrefix(strings.TrimSpace(release), "v")
	return name + "-" + release
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
