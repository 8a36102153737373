package model

import "time"

// Threat is the materialized claim that one concrete package version is
// threatened by one vuln. At most one row exists per
// (package_version_id, vuln_id) pair.
type Threat struct {
	Key              string    `json:"_key,omitempty"`
	PackageVersionID string    `json:"package_version_id"`
	VulnID           string    `json:"vuln_id"`
	ObjType          string    `json:"objtype,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewThreat creates a threat row for the pair.
func NewThreat(packageVersionID, vulnID string) *Threat {
	return &Threat{
		PackageVersionID: packageVersionID,
		VulnID:           vulnID,
		ObjType:          "Threat",
		CreatedAt:        time.Now(),
	}
}
