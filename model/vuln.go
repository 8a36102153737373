package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Exploitation is the SSVC exploitation decision point, carried per vuln.
type Exploitation string

const (
	// ExploitationNone means no exploit is known.
	ExploitationNone Exploitation = "none"
	// ExploitationPoC means a proof of concept exists.
	ExploitationPoC Exploitation = "poc"
	// ExploitationActive means exploitation in the wild is reported.
	ExploitationActive Exploitation = "active"
)

// Valid reports whether e is a defined exploitation level.
func (e Exploitation) Valid() bool {
	switch e {
	case ExploitationNone, ExploitationPoC, ExploitationActive:
		return true
	}
	return false
}

// Automatable is the SSVC automatable decision point.
type Automatable string

const (
	// AutomatableNo means the attack cannot be automated across targets.
	AutomatableNo Automatable = "no"
	// AutomatableYes means the attack is automatable.
	AutomatableYes Automatable = "yes"
)

// Valid reports whether a is a defined automatable level.
func (a Automatable) Valid() bool {
	return a == AutomatableNo || a == AutomatableYes
}

// SafetyImpact is the SSVC safety-impact decision point, carried per vuln.
type SafetyImpact string

const (
	// SafetyImpactNegligible means no safety consequence worth tracking.
	SafetyImpactNegligible SafetyImpact = "negligible"
	// SafetyImpactMarginal means minor injuries or system damage are possible.
	SafetyImpactMarginal SafetyImpact = "marginal"
	// SafetyImpactCritical means serious injuries or major damage are possible.
	SafetyImpactCritical SafetyImpact = "critical"
	// SafetyImpactCatastrophic means loss of life is possible.
	SafetyImpactCatastrophic SafetyImpact = "catastrophic"
)

// Valid reports whether s is a defined safety-impact level.
func (s SafetyImpact) Valid() bool {
	switch s {
	case SafetyImpactNegligible, SafetyImpactMarginal, SafetyImpactCritical, SafetyImpactCatastrophic:
		return true
	}
	return false
}

// Vuln is a vulnerability record aggregated from feeds.
type Vuln struct {
	Key           string       `json:"_key,omitempty"`
	AdvisoryID    string       `json:"advisory_id,omitempty"` // feed identifier (OSV/CVE id); updates key off it
	Title         string       `json:"title"`
	Detail        string       `json:"detail"`
	CVSSBaseScore float64      `json:"cvss_base_score"`
	ThreatImpact  int          `json:"threat_impact"` // legacy 1..4 priority input
	Exploitation  Exploitation `json:"exploitation,omitempty"`
	Automatable   Automatable  `json:"automatable,omitempty"`
	SafetyImpact  SafetyImpact `json:"safety_impact,omitempty"`
	HintForAction string       `json:"hint_for_action,omitempty"` // remediation guidance; tickets exist only when set
	Fingerprint   string       `json:"fingerprint,omitempty"`
	ObjType       string       `json:"objtype,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewVuln creates a vulnerability record.
func NewVuln(title, detail string) *Vuln {
	now := time.Now()
	return &Vuln{
		Title:     title,
		Detail:    detail,
		ObjType:   "Vuln",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Affect declares which version ranges of one package a vuln applies to.
type Affect struct {
	Key              string   `json:"_key,omitempty"`
	VulnID           string   `json:"vuln_id"`
	PackageID        string   `json:"package_id"`
	AffectedVersions []string `json:"affected_versions"`
	FixedVersions    []string `json:"fixed_versions"`
	ObjType          string   `json:"objtype,omitempty"`
}

// NewAffect creates an affect row under a vuln.
func NewAffect(vulnID, packageID string, affected, fixed []string) *Affect {
	return &Affect{
		VulnID:           vulnID,
		PackageID:        packageID,
		AffectedVersions: affected,
		FixedVersions:    fixed,
		ObjType:          "Affect",
	}
}

// ContentFingerprint hashes the vuln content together with its affect data so
// semantically duplicate records from different feeds collapse to one digest.
// Affects are sorted before hashing; their feed order must not matter.
func ContentFingerprint(v *Vuln, affects []Affect) string {
	lines := make([]string, 0, len(affects))
	for _, a := range affects {
		affected := append([]string(nil), a.AffectedVersions...)
		fixed := append([]string(nil), a.FixedVersions...)
		sort.Strings(affected)
		sort.Strings(fixed)
		lines = append(lines, fmt.Sprintf("%s|%s|%s", a.PackageID, strings.Join(affected, ","), strings.Join(fixed, ",")))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%.1f\n", v.Title, v.Detail, v.CVSSBaseScore)
	for _, line := range lines {
		fmt.Fprintln(h, line)
	}
	return hex.EncodeToString(h.Sum(nil))
}
