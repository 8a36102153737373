package model

import "time"

// EoLProduct is one catalog entry: either a whole ecosystem (Ecosystem set)
// or a specific package (PackageName set).
type EoLProduct struct {
	Key         string  `json:"_key,omitempty"`
	Name        string  `json:"name"`
	Ecosystem   *string `json:"ecosystem,omitempty"`
	PackageName *string `json:"package_name,omitempty"`
	ObjType     string  `json:"objtype,omitempty"`
}

// EoLVersion is one supported version window of an EoL product.
type EoLVersion struct {
	Key             string    `json:"_key,omitempty"`
	ProductID       string    `json:"product_id"`
	Name            string    `json:"name"`
	ReleaseDate     time.Time `json:"release_date"`
	EoLFrom         time.Time `json:"eol_from"`
	MatchingVersion string    `json:"matching_version"` // bucket compared against dependency versions
	ObjType         string    `json:"objtype,omitempty"`
}

// EcosystemEoLDependency links a service to an ecosystem-level EoL version it
// runs on. NotificationSent guards the warning from firing twice for the pair.
type EcosystemEoLDependency struct {
	Key              string    `json:"_key,omitempty"`
	ServiceID        string    `json:"service_id"`
	DependencyID     string    `json:"dependency_id"`
	EoLVersionID     string    `json:"eol_version_id"`
	Ecosystem        string    `json:"ecosystem"`
	NotificationSent bool      `json:"eol_notification_sent"`
	ObjType          string    `json:"objtype,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PackageEoLDependency links a concrete dependency to a package-level EoL
// version it matched.
type PackageEoLDependency struct {
	Key              string    `json:"_key,omitempty"`
	DependencyID     string    `json:"dependency_id"`
	EoLVersionID     string    `json:"eol_version_id"`
	NotificationSent bool      `json:"eol_notification_sent"`
	ObjType          string    `json:"objtype,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
