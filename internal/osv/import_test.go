package osv

import (
	"testing"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertBasicRecord(t *testing.T) {
	osv := &models.Vulnerability{
		ID:      "GHSA-xxxx-yyyy-zzzz",
		Summary: "Prototype pollution in lodash",
		Details: "long description",
		Severity: []models.Severity{
			{Type: models.SeverityCVSSV3, Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:H/A:N"},
		},
		Affected: []models.Affected{{
			Package: models.Package{Ecosystem: "npm", Name: "lodash"},
			Ranges: []models.Range{{
				Type: models.RangeSemVer,
				Events: []models.Event{
					{Introduced: "0"},
					{Fixed: "4.17.21"},
				},
			}},
		}},
	}

	converted, err := Convert(osv)
	require.NoError(t, err)
	assert.Equal(t, "GHSA-xxxx-yyyy-zzzz", converted.Vuln.AdvisoryID)
	assert.Equal(t, "Prototype pollution in lodash", converted.Vuln.Title)
	assert.Equal(t, "long description", converted.Vuln.Detail)
	assert.InDelta(t, 7.5, converted.Vuln.CVSSBaseScore, 0.01)
	assert.Contains(t, converted.Vuln.HintForAction, "4.17.21")

	require.Len(t, converted.Affects, 1)
	affect := converted.Affects[0]
	assert.Equal(t, "npm", affect.Ecosystem)
	assert.Equal(t, "lodash", affect.PackageName)
	assert.Equal(t, []string{"< 4.17.21"}, affect.AffectedVersions, "introduced 0 adds no lower bound")
	assert.Equal(t, []string{"4.17.21"}, affect.FixedVersions)
}

func TestConvertMultipleWindows(t *testing.T) {
	osv := &models.Vulnerability{
		ID: "GHSA-aaaa-bbbb-cccc",
		Affected: []models.Affected{{
			Package: models.Package{Ecosystem: "PyPI", Name: "django"},
			Ranges: []models.Range{{
				Type: models.RangeEcosystem,
				Events: []models.Event{
					{Introduced: "3.0"},
					{Fixed: "3.0.14"},
					{Introduced: "3.1"},
					{Fixed: "3.1.8"},
				},
			}},
		}},
	}

	converted, err := Convert(osv)
	require.NoError(t, err)
	require.Len(t, converted.Affects, 1)
	affect := converted.Affects[0]
	assert.Equal(t, "pypi", affect.Ecosystem)
	assert.Equal(t, []string{">= 3.0, < 3.0.14", ">= 3.1, < 3.1.8"}, affect.AffectedVersions)
	assert.Equal(t, []string{"3.0.14", "3.1.8"}, affect.FixedVersions)
}

func TestConvertLastAffectedAndExactVersions(t *testing.T) {
	osv := &models.Vulnerability{
		ID: "OSV-2024-1",
		Affected: []models.Affected{{
			Package:  models.Package{Ecosystem: "npm", Name: "leftpad"},
			Versions: []string{"1.0.0", "1.0.1"},
			Ranges: []models.Range{{
				Type: models.RangeSemVer,
				Events: []models.Event{
					{Introduced: "2.0.0"},
					{LastAffected: "2.3.0"},
				},
			}},
		}},
	}

	converted, err := Convert(osv)
	require.NoError(t, err)
	require.Len(t, converted.Affects, 1)
	affect := converted.Affects[0]
	assert.Equal(t, []string{"= 1.0.0", "= 1.0.1", ">= 2.0.0, <= 2.3.0"}, affect.AffectedVersions)
	assert.Empty(t, affect.FixedVersions)
	assert.Empty(t, converted.Vuln.HintForAction, "no fixed version means no remediation hint")
}

func TestConvertSkipsGitRanges(t *testing.T) {
	osv := &models.Vulnerability{
		ID: "OSV-2024-2",
		Affected: []models.Affected{{
			Package: models.Package{Ecosystem: "npm", Name: "leftpad"},
			Ranges: []models.Range{{
				Type:   models.RangeGit,
				Events: []models.Event{{Introduced: "deadbeef"}, {Fixed: "cafebabe"}},
			}},
		}},
	}

	converted, err := Convert(osv)
	require.NoError(t, err)
	require.Len(t, converted.Affects, 1)
	assert.Empty(t, converted.Affects[0].AffectedVersions)
}

func TestConvertFallsBackToIDAsTitle(t *testing.T) {
	converted, err := Convert(&models.Vulnerability{ID: "CVE-2024-0001"})
	require.NoError(t, err)
	assert.Equal(t, "CVE-2024-0001", converted.Vuln.Title)

	_, err = Convert(&models.Vulnerability{})
	assert.Error(t, err)
}

func TestNormalizeEcosystem(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"npm", "npm"},
		{"PyPI", "pypi"},
		{"Go", "golang"},
		{"Debian:12", "debian-12"},
		{"Ubuntu:24.04", "ubuntu-24.04"},
		{"Alpine:v3.22", "alpine-3.22"},
		{"Rocky Linux:9", "rocky-9"},
		{"AlmaLinux:8", "alma-8"},
		{"crates.io", "cargo"},
		{"RubyGems", "rubygems"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEcosystem(tt.in), tt.in)
	}
}
