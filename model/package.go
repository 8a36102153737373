// Package model defines the data structures stored by the platform:
// packages, dependencies, vulnerabilities, threats, tickets, and EOL records.
package model

import (
	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
)

// PackageKind distinguishes OS-distro packages from language ecosystem packages.
type PackageKind string

const (
	// PackageKindOS is a package delivered by an OS distribution (apt, rpm, apk).
	PackageKindOS PackageKind = "os"
	// PackageKindLang is a package from a language ecosystem (pypi, npm, golang).
	PackageKindLang PackageKind = "lang"
)

// Package identifies a software package by (name, ecosystem, source_name).
// A nil SourceName is a distinct value, still unique per (name, ecosystem).
type Package struct {
	Key             string      `json:"_key,omitempty"`
	Name            string      `json:"name"`
	Ecosystem       string      `json:"ecosystem"`
	VulnMatchingKey string      `json:"vuln_matching_ecosystem"` // normalized key; persisted so lookups can join across patch-level tags
	SourceName      *string     `json:"source_name,omitempty"`   // OS packages only: the source package the binary was built from
	Kind            PackageKind `json:"kind"`
	ObjType         string      `json:"objtype,omitempty"`
}

// NewOSPackage creates an OS-distro package.
func NewOSPackage(name, eco string, sourceName *string) *Package {
	return &Package{
		Name:            name,
		Ecosystem:       eco,
		VulnMatchingKey: ecosystem.VulnMatchingEcosystem(eco),
		SourceName:      sourceName,
		Kind:            PackageKindOS,
		ObjType:         "Package",
	}
}

// NewLangPackage creates a language ecosystem package.
func NewLangPackage(name, eco string) *Package {
	return &Package{
		Name:            name,
		Ecosystem:       eco,
		VulnMatchingKey: eco,
		Kind:            PackageKindLang,
		ObjType:         "Package",
	}
}

// VulnMatchingEcosystem returns the normalized key vulnerability and EOL
// matching group by. OS packages collapse their distro version to the
// advisory granularity; language packages use their ecosystem string
// verbatim.
func (p *Package) VulnMatchingEcosystem() string {
	return p.VulnMatchingKey
}

// PackageVersion is one concrete version of a Package, created on first SBOM
// reference and removed by package cleanup once nothing references it.
type PackageVersion struct {
	Key       string `json:"_key,omitempty"`
	PackageID string `json:"package_id"`
	Version   string `json:"version"`
	ObjType   string `json:"objtype,omitempty"`
}

// NewPackageVersion creates a version row under the given package.
func NewPackageVersion(packageID, version string) *PackageVersion {
	return &PackageVersion{
		PackageID: packageID,
		Version:   version,
		ObjType:   "PackageVersion",
	}
}
