package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
	"github.com/nttcom/threatconnectome-sub003/internal/version"
)

func TestParseAndCompare(t *testing.T) {
	tests := []struct {
		name   string
		family ecosystem.Family
		a, b   string
		want   int
	}{
		{name: "debian epoch dominates", family: ecosystem.FamilyDebian, a: "1:1.0-1", b: "2.0-1", want: 1},
		{name: "debian revision ordering", family: ecosystem.FamilyDebian, a: "1.0-1", b: "1.0-2", want: -1},
		{name: "debian equal", family: ecosystem.FamilyDebian, a: "1.2.3-1", b: "1.2.3-1", want: 0},
		{name: "rpm release ordering", family: ecosystem.FamilyRPM, a: "1.0-1.el9", b: "1.0-2.el9", want: -1},
		{name: "rpm epoch dominates", family: ecosystem.FamilyRPM, a: "1:0.9", b: "2.0", want: 1},
		{name: "pypi pre release", family: ecosystem.FamilyPyPI, a: "1.0rc1", b: "1.0", want: -1},
		{name: "pypi epoch stripped", family: ecosystem.FamilyPyPI, a: "1!1.0", b: "1.0", want: 0},
		{name: "npm prerelease before release", family: ecosystem.FamilyNPM, a: "2.0.0-alpha", b: "2.0.0", want: -1},
		{name: "npm ordering", family: ecosystem.FamilyNPM, a: "1.2.0", b: "1.10.0", want: -1},
		{name: "golang accepts missing v prefix", family: ecosystem.FamilyGo, a: "1.21.0", b: "v1.21.0", want: 0},
		{name: "golang ordering", family: ecosystem.FamilyGo, a: "v1.2.3", b: "v1.10.0", want: -1},
		{name: "generic semver", family: ecosystem.FamilyUnknown, a: "3.22.0", b: "3.22.1", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := version.Parse(tt.family, tt.a)
			require.NoError(t, err)
			b, err := version.Parse(tt.family, tt.b)
			require.NoError(t, err)

			got, err := a.Compare(b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sign(got))
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name   string
		family ecosystem.Family
		s      string
	}{
		{name: "empty string", family: ecosystem.FamilyNPM, s: ""},
		{name: "garbage npm", family: ecosystem.FamilyNPM, s: "not a version"},
		{name: "garbage golang", family: ecosystem.FamilyGo, s: "latest"},
		{name: "garbage generic", family: ecosystem.FamilyUnknown, s: "???"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := version.Parse(tt.family, tt.s)
			assert.ErrorIs(t, err, version.ErrInvalidVersion)
		})
	}
}

func TestCompareAcrossFamiliesFails(t *testing.T) {
	a, err := version.Parse(ecosystem.FamilyNPM, "1.0.0")
	require.NoError(t, err)
	b, err := version.Parse(ecosystem.FamilyPyPI, "1.0.0")
	require.NoError(t, err)

	_, err = a.Compare(b)
	assert.ErrorIs(t, err, version.ErrIncomparable)
}

func TestParseEOLStripsEpochAndRevision(t *testing.T) {
	a, err := version.ParseEOL(ecosystem.FamilyDebian, "1:115.2.1-1ubuntu1")
	require.NoError(t, err)
	b, err := version.ParseEOL(ecosystem.FamilyDebian, "115.2.1")
	require.NoError(t, err)

	got, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestMatchesEOL(t *testing.T) {
	tests := []struct {
		name            string
		family          ecosystem.Family
		version         string
		matchingVersion string
		want            bool
	}{
		{name: "major bucket", family: ecosystem.FamilyDebian, version: "1:115.2.1-1", matchingVersion: "115", want: true},
		{name: "major bucket miss", family: ecosystem.FamilyDebian, version: "116.0-1", matchingVersion: "115", want: false},
		{name: "major.minor bucket", family: ecosystem.FamilyUnknown, version: "3.22.4", matchingVersion: "3.22", want: true},
		{name: "shorter than bucket", family: ecosystem.FamilyUnknown, version: "3", matchingVersion: "3.22", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := version.MatchesEOL(tt.family, tt.version, tt.matchingVersion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
