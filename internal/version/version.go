// Package version parses package version strings into comparable values,
// dispatching on the package family so that each ecosystem's ordering rules
// are honored.
package version

import (
	"errors"
	"fmt"
	"strings"

	mastersemver "github.com/Masterminds/semver/v3"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debver "github.com/knqyf263/go-deb-version"
	rpmver "github.com/knqyf263/go-rpm-version"
	gomodsemver "golang.org/x/mod/semver"

	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
)

// ErrInvalidVersion marks a version string that cannot be parsed under its
// family's rules. Callers must treat it as "cannot determine", never as
// "not vulnerable".
var ErrInvalidVersion = errors.New("invalid version")

// ErrIncomparable marks a comparison between versions of different families.
var ErrIncomparable = errors.New("versions are not comparable")

// Comparable is a parsed version supporting total ordering within its family.
// Range logic is expressed with inequalities on bounds only; textual equality
// of two version strings says nothing about their ordering.
type Comparable interface {
	// Compare returns <0, 0, >0 when the receiver orders before, equal to,
	// or after other. Comparing across families fails with ErrIncomparable.
	Compare(other Comparable) (int, error)
	String() string
}

type debVersion struct {
	raw string
	v   debver.Version
}

func (d debVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(debVersion)
	if !ok {
		return 0, fmt.Errorf("%w: debian vs %T", ErrIncomparable, other)
	}
	switch {
	case d.v.LessThan(o.v):
		return -1, nil
	case d.v.GreaterThan(o.v):
		return 1, nil
	default:
		return 0, nil
	}
}

func (d debVersion) String() string { return d.raw }

type rpmVersion struct {
	raw string
	v   rpmver.Version
}

func (r rpmVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(rpmVersion)
	if !ok {
		return 0, fmt.Errorf("%w: rpm vs %T", ErrIncomparable, other)
	}
	switch {
	case r.v.LessThan(o.v):
		return -1, nil
	case r.v.GreaterThan(o.v):
		return 1, nil
	default:
		return 0, nil
	}
}

func (r rpmVersion) String() string { return r.raw }

type pypiVersion struct {
	raw string
	v   pep440.Version
}

func (p pypiVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(pypiVersion)
	if !ok {
		return 0, fmt.Errorf("%w: pypi vs %T", ErrIncomparable, other)
	}
	switch {
	case p.v.LessThan(o.v):
		return -1, nil
	case p.v.GreaterThan(o.v):
		return 1, nil
	default:
		return 0, nil
	}
}

func (p pypiVersion) String() string { return p.raw }

type npmVersion struct {
	raw string
	v   npm.Version
}

func (n npmVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(npmVersion)
	if !ok {
		return 0, fmt.Errorf("%w: npm vs %T", ErrIncomparable, other)
	}
	switch {
	case n.v.LessThan(o.v):
		return -1, nil
	case n.v.GreaterThan(o.v):
		return 1, nil
	default:
		return 0, nil
	}
}

func (n npmVersion) String() string { return n.raw }

type goVersion struct {
	raw       string
	canonical string
}

func (g goVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(goVersion)
	if !ok {
		return 0, fmt.Errorf("%w: golang vs %T", ErrIncomparable, other)
	}
	return gomodsemver.Compare(g.canonical, o.canonical), nil
}

func (g goVersion) String() string { return g.raw }

type genericVersion struct {
	raw string
	v   *mastersemver.Version
}

func (s genericVersion) Compare(other Comparable) (int, error) {
	o, ok := other.(genericVersion)
	if !ok {
		return 0, fmt.Errorf("%w: generic vs %T", ErrIncomparable, other)
	}
	return s.v.Compare(o.v), nil
}

func (s genericVersion) String() string { return s.raw }

// Parse parses a version string under the given family's rules.
func Parse(family ecosystem.Family, s string) (Comparable, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, fmt.Errorf("%s version is empty: %w", family, ErrInvalidVersion)
	}

	switch family {
	case ecosystem.FamilyDebian:
		v, err := debver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("parse debian version %q: %w", raw, ErrInvalidVersion)
		}
		return debVersion{raw: raw, v: v}, nil

	case ecosystem.FamilyRPM:
		return rpmVersion{raw: raw, v: rpmver.NewVersion(raw)}, nil

	case ecosystem.FamilyPyPI:
		// Epoch segments are not portable across vulnerability feeds.
		v, err := pep440.Parse(stripPyPIEpoch(raw))
		if err != nil {
			return nil, fmt.Errorf("parse pypi version %q: %w", raw, ErrInvalidVersion)
		}
		return pypiVersion{raw: raw, v: v}, nil

	case ecosystem.FamilyGo:
		canonical := raw
		if !strings.HasPrefix(canonical, "v") {
			canonical = "v" + canonical
		}
		if !gomodsemver.IsValid(canonical) {
			return nil, fmt.Errorf("parse golang version %q: %w", raw, ErrInvalidVersion)
		}
		return goVersion{raw: raw, canonical: gomodsemver.Canonical(canonical)}, nil

	case ecosystem.FamilyNPM:
		v, err := npm.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("parse npm version %q: %w", raw, ErrInvalidVersion)
		}
		return npmVersion{raw: raw, v: v}, nil

	default:
		v, err := mastersemver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("parse version %q: %w", raw, ErrInvalidVersion)
		}
		return genericVersion{raw: raw, v: v}, nil
	}
}

// ParseEOL parses a version for end-of-life matching. Debian and RPM versions
// drop epoch and revision so that only the upstream component is compared;
// other families parse as usual.
func ParseEOL(family ecosystem.Family, s string) (Comparable, error) {
	switch family {
	case ecosystem.FamilyDebian, ecosystem.FamilyRPM:
		return Parse(family, stripEpochRevision(strings.TrimSpace(s)))
	default:
		return Parse(family, s)
	}
}

// MatchesEOL reports whether a dependency's version falls in the bucket named
// by an EOL catalog's matching version. The matching version fixes the
// granularity: "115" matches any upstream 115.x, "3.22" matches 3.22.x.
func MatchesEOL(family ecosystem.Family, versionStr, matchingVersion string) (bool, error) {
	upstream := strings.TrimSpace(versionStr)
	switch family {
	case ecosystem.FamilyDebian, ecosystem.FamilyRPM:
		upstream = stripEpochRevision(upstream)
	}
	if upstream == "" {
		return false, fmt.Errorf("%s version is empty: %w", family, ErrInvalidVersion)
	}

	want := strings.Split(strings.TrimSpace(matchingVersion), ".")
	got := strings.Split(upstream, ".")
	if len(got) < len(want) {
		return false, nil
	}
	for i := range want {
		if got[i] != want[i] {
			return false, nil
		}
	}
	return true, nil
}

func stripPyPIEpoch(s string) string {
	if i := strings.Index(s, "!"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// stripEpochRevision reduces "epoch:upstream-revision" to "upstream".
func stripEpochRevision(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[:i]
	}
	return s
}
