package model

// Artifact is the raw dependency candidate handed over by SBOM ingestion.
// The core never sees SBOM documents, only these records.
type Artifact struct {
	PackageName    string              `json:"package_name"`
	Ecosystem      string              `json:"ecosystem"`
	PackageManager string              `json:"package_manager"`
	SourceName     *string             `json:"source_name,omitempty"`
	PURL           string              `json:"purl,omitempty"` // alternative to package_name+ecosystem
	References     []ArtifactReference `json:"references"`
}

// ArtifactReference is one (target path, version) occurrence of the artifact.
type ArtifactReference struct {
	Target  string `json:"target"`
	Version string `json:"version"`
}
