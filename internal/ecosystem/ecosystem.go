// Package ecosystem maps raw ecosystem strings onto package families and
// normalized vulnerability-matching keys.
package ecosystem

import (
	"fmt"
	"regexp"
	"strings"
)

// Family identifies the version scheme used by a package ecosystem.
type Family int

const (
	// FamilyUnknown is returned when no classification rule matches.
	FamilyUnknown Family = iota
	// FamilyDebian covers Debian and Ubuntu package versions (epoch:upstream-revision).
	FamilyDebian
	// FamilyPyPI covers PEP 440 versions.
	FamilyPyPI
	// FamilyNPM covers npm semantic versions.
	FamilyNPM
	// FamilyGo covers Go module versions.
	FamilyGo
	// FamilyRPM covers RPM-family distro versions.
	FamilyRPM
)

// String returns the lowercase family name.
func (f Family) String() string {
	switch f {
	case FamilyDebian:
		return "debian"
	case FamilyPyPI:
		return "pypi"
	case FamilyNPM:
		return "npm"
	case FamilyGo:
		return "golang"
	case FamilyRPM:
		return "rpm"
	default:
		return "unknown"
	}
}

// familyRule maps an ecosystem string prefix to a family. Rules are evaluated
// in order, first match wins.
type familyRule struct {
	prefix string
	family Family
}

var familyRules = []familyRule{
	{"debian", FamilyDebian},
	{"ubuntu", FamilyDebian},
	{"pypi", FamilyPyPI},
	{"npm", FamilyNPM},
	{"golang", FamilyGo},
	{"rocky", FamilyRPM},
	{"alma", FamilyRPM},
	{"rhel", FamilyRPM},
	{"redhat", FamilyRPM},
	{"centos", FamilyRPM},
	{"fedora", FamilyRPM},
	{"amazon", FamilyRPM},
	{"oracle", FamilyRPM},
}

// Classify maps a raw ecosystem string to a package family. Matching is
// case-insensitive over the ordered rule list.
func Classify(ecosystem string) Family {
	eco := strings.ToLower(strings.TrimSpace(ecosystem))
	for _, rule := range familyRules {
		if strings.HasPrefix(eco, rule.prefix) {
			return rule.family
		}
	}
	return FamilyUnknown
}

// bucketRule controls how many dotted version segments of an OS-distro
// ecosystem tag are significant for vulnerability matching.
type bucketRule struct {
	distro   string
	segments int
}

// Vulnerability feeds publish advisories per distro release, not per patch
// level, so patch components are collapsed per distro convention.
var bucketRules = []bucketRule{
	{"alpine", 2},
	{"ubuntu", 2},
	{"rocky", 1},
	{"alma", 1},
	{"debian", 1},
	{"amazon", 1},
	{"rhel", 1},
	{"centos", 1},
	{"oracle", 1},
	{"fedora", 1},
}

var distroVersionPattern = regexp.MustCompile(`^([a-z]+)-(\d+(?:\.\d+)*)$`)

// VulnMatchingEcosystem normalizes an OS-distro ecosystem tag into the key
// vulnerability and EOL matching group by, e.g. "rocky-9.3" -> "rocky-9",
// "alpine-3.22.0" -> "alpine-3.22". Ecosystems that do not have the
// "name-version" shape pass through unchanged.
func VulnMatchingEcosystem(ecosystem string) string {
	eco := strings.ToLower(strings.TrimSpace(ecosystem))
	m := distroVersionPattern.FindStringSubmatch(eco)
	if m == nil {
		return eco
	}

	distro, ver := m[1], m[2]
	for _, rule := range bucketRules {
		if rule.distro != distro {
			continue
		}
		segments := strings.Split(ver, ".")
		if len(segments) > rule.segments {
			segments = segments[:rule.segments]
		}
		return fmt.Sprintf("%s-%s", distro, strings.Join(segments, "."))
	}
	return eco
}
