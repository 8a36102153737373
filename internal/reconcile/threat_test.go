package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/model"
)

type fakeStore struct {
	mu sync.Mutex

	packages        map[string]*model.Package
	packageVersions map[string]*model.PackageVersion
	vulns           map[string]*model.Vuln
	affects         map[string]*model.Affect
	threats         map[string]*model.Threat
	teams           map[string]*model.Team
	services        map[string]*model.Service
	dependencies    map[string]*model.Dependency

	eolProducts []EoLProductWithVersions
	ecoEoLRows  map[string]*model.EcosystemEoLDependency
	pkgEoLRows  map[string]*model.PackageEoLDependency

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		packages:        map[string]*model.Package{},
		packageVersions: map[string]*model.PackageVersion{},
		vulns:           map[string]*model.Vuln{},
		affects:         map[string]*model.Affect{},
		threats:         map[string]*model.Threat{},
		teams:           map[string]*model.Team{},
		services:        map[string]*model.Service{},
		dependencies:    map[string]*model.Dependency{},
		ecoEoLRows:      map[string]*model.EcosystemEoLDependency{},
		pkgEoLRows:      map[string]*model.PackageEoLDependency{},
	}
}

func (s *fakeStore) newKey(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *fakeStore) addPackage(p *model.Package) *model.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Key = s.newKey("pkg")
	s.packages[p.Key] = p
	return p
}

func (s *fakeStore) addPackageVersion(pv *model.PackageVersion) *model.PackageVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv.Key = s.newKey("pv")
	s.packageVersions[pv.Key] = pv
	return pv
}

func (s *fakeStore) addVuln(v *model.Vuln) *model.Vuln {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Key = s.newKey("vuln")
	s.vulns[v.Key] = v
	return v
}

func (s *fakeStore) addAffect(a *model.Affect) *model.Affect {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Key = s.newKey("affect")
	s.affects[a.Key] = a
	return a
}

func (s *fakeStore) addTeam(t *model.Team) *model.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Key = s.newKey("team")
	s.teams[t.Key] = t
	return t
}

func (s *fakeStore) addService(svc *model.Service) *model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.Key = s.newKey("svc")
	s.services[svc.Key] = svc
	return svc
}

func (s *fakeStore) addDependency(d *model.Dependency) *model.Dependency {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Key = s.newKey("dep")
	s.dependencies[d.Key] = d
	return d
}

func (s *fakeStore) GetVulnByID(_ context.Context, id string) (*model.Vuln, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vulns[id]
	if !ok {
		return nil, fmt.Errorf("vuln %s: %w", id, model.ErrNotFound)
	}
	return v, nil
}

func (s *fakeStore) GetPackageByID(_ context.Context, id string) (*model.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

func (s *fakeStore) GetPackagesByVulnMatchingEcosystem(_ context.Context, matchingKey, name string) ([]model.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Package
	for _, p := range s.packages {
		if p.Name == name && p.VulnMatchingEcosystem() == matchingKey {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPackageVersionByID(_ context.Context, id string) (*model.PackageVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv, ok := s.packageVersions[id]
	if !ok {
		return nil, fmt.Errorf("package version %s: %w", id, model.ErrNotFound)
	}
	return pv, nil
}

func (s *fakeStore) GetPackageVersionsByPackageID(_ context.Context, packageID string) ([]model.PackageVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PackageVersion
	for _, pv := range s.packageVersions {
		if pv.PackageID == packageID {
			out = append(out, *pv)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAffectsByVulnID(_ context.Context, vulnID string) ([]model.Affect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Affect
	for _, a := range s.affects {
		if a.VulnID == vulnID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAffectsByPackageID(_ context.Context, packageID string) ([]model.Affect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Affect
	for _, a := range s.affects {
		if a.PackageID == packageID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetThreatByPackageVersionAndVuln(_ context.Context, packageVersionID, vulnID string) (*model.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threats {
		if t.PackageVersionID == packageVersionID && t.VulnID == vulnID {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetThreatsByVulnID(_ context.Context, vulnID string) ([]model.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Threat
	for _, t := range s.threats {
		if t.VulnID == vulnID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeStore) GetThreatsByPackageVersionID(_ context.Context, packageVersionID string) ([]model.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Threat
	for _, t := range s.threats {
		if t.PackageVersionID == packageVersionID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateThreat(_ context.Context, t *model.Threat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.threats {
		if existing.PackageVersionID == t.PackageVersionID && existing.VulnID == t.VulnID {
			return fmt.Errorf("threat for pair exists: %w", model.ErrConflict)
		}
	}
	t.Key = s.newKey("threat")
	s.threats[t.Key] = t
	return nil
}

func (s *fakeStore) DeleteThreat(_ context.Context, threatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threats[threatID]; !ok {
		return fmt.Errorf("threat %s: %w", threatID, model.ErrNotFound)
	}
	delete(s.threats, threatID)
	return nil
}

func (s *fakeStore) DeletePackageVersion(_ context.Context, packageVersionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.packageVersions, packageVersionID)
	return nil
}

func (s *fakeStore) GetTeamByID(_ context.Context, id string) (*model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", id, model.ErrNotFound)
	}
	return team, nil
}

func (s *fakeStore) GetServiceByID(_ context.Context, id string) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", id, model.ErrNotFound)
	}
	return svc, nil
}

func (s *fakeStore) GetDependenciesByServiceID(_ context.Context, serviceID string) ([]model.Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Dependency
	for _, d := range s.dependencies {
		if d.ServiceID == serviceID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAllEoLProducts(_ context.Context) ([]EoLProductWithVersions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eolProducts, nil
}

func (s *fakeStore) GetEcosystemEoLDependenciesByServiceID(_ context.Context, serviceID string) ([]model.EcosystemEoLDependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.EcosystemEoLDependency
	for _, r := range s.ecoEoLRows {
		if r.ServiceID == serviceID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPackageEoLDependenciesByServiceID(_ context.Context, serviceID string) ([]model.PackageEoLDependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PackageEoLDependency
	for _, r := range s.pkgEoLRows {
		dep, ok := s.dependencies[r.DependencyID]
		if ok && dep.ServiceID == serviceID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteEoLDependenciesByServiceID(_ context.Context, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.ecoEoLRows {
		if r.ServiceID == serviceID {
			delete(s.ecoEoLRows, key)
		}
	}
	for key, r := range s.pkgEoLRows {
		dep, ok := s.dependencies[r.DependencyID]
		if ok && dep.ServiceID == serviceID {
			delete(s.pkgEoLRows, key)
		}
	}
	return nil
}

func (s *fakeStore) CreateEcosystemEoLDependency(_ context.Context, d *model.EcosystemEoLDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Key = s.newKey("ecoeol")
	s.ecoEoLRows[d.Key] = d
	return nil
}

func (s *fakeStore) CreatePackageEoLDependency(_ context.Context, d *model.PackageEoLDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Key = s.newKey("pkgeol")
	s.pkgEoLRows[d.Key] = d
	return nil
}

// recordingDeriver tracks ticket cascade calls.
type recordingDeriver struct {
	mu      sync.Mutex
	ensured []string
	removed []string
}

func (r *recordingDeriver) EnsureTicket(_ context.Context, threat *model.Threat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured = append(r.ensured, threat.Key)
	return nil
}

func (r *recordingDeriver) RemoveTicket(_ context.Context, threatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, threatID)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	calls    int
	teams    []*model.Team
	delivery bool
}

func (n *recordingNotifier) NotifyEoLEcosystem(_ context.Context, team *model.Team, _ *model.Service, _ model.Dependency, _ model.EoLVersion) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.teams = append(n.teams, team)
	return n.delivery
}

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func newTestEngine(store *fakeStore, opts ...Option) (*Engine, *recordingDeriver, *recordingNotifier) {
	deriver := &recordingDeriver{}
	notifier := &recordingNotifier{delivery: true}
	opts = append([]Option{WithProgressInterval(time.Hour)}, opts...)
	engine := NewEngine(store, deriver, notifier, testLogger(), opts...)
	return engine, deriver, notifier
}

func TestReconcileVulnCreatesThreatInsideRange(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 2.0"}, []string{">= 2.0"}))

	engine, deriver, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	require.NotNil(t, threat)
	assert.Len(t, deriver.ensured, 1)
}

func TestReconcileVulnSkipsVersionOutsideRange(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 1.0"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.Nil(t, threat)
}

func TestReconcileVulnOrClauseMatches(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 1.0", "> 3.0 || = 1.2"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.NotNil(t, threat)
}

func TestReconcileVulnUnparseableRangeAssumesThreatened(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("leftpad", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("rce", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< not.a.version"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.NotNil(t, threat, "unknown comparisons must fail toward caution")
}

func TestReconcileVulnEmptyRangeAssumesThreatened(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("leftpad", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("rce", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, nil, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.NotNil(t, threat)
}

func TestReconcileVulnIsIdempotent(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 2.0"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threats, err := store.GetThreatsByVulnID(context.Background(), vuln.Key)
	require.NoError(t, err)
	assert.Len(t, threats, 1, "re-running reconciliation must not duplicate threats")
}

func TestReconcileVulnRemovesThreatWhenRangeNarrows(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	affect := store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 2.0"}, nil))

	engine, deriver, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))
	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	require.NotNil(t, threat)

	// Feed correction narrows the range below the deployed version.
	affect.AffectedVersions = []string{"< 1.0"}
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	gone, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Contains(t, deriver.removed, threat.Key)
}

func TestReconcileVulnMatchesAcrossDistroPatchTags(t *testing.T) {
	store := newFakeStore()
	// The dependency carries the patch-level distro tag...
	depPkg := store.addPackage(model.NewOSPackage("openssl", "rocky-9.3", nil))
	pv := store.addPackageVersion(model.NewPackageVersion(depPkg.Key, "3.0.7-1.el9"))
	// ...while the advisory is recorded at feed granularity.
	advPkg := store.addPackage(model.NewOSPackage("openssl", "rocky-9", nil))
	vuln := store.addVuln(model.NewVuln("keyslot overflow", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, advPkg.Key, []string{"< 3.0.7-2.el9"}, []string{">= 3.0.7-2.el9"}))

	engine, deriver, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	require.NotNil(t, threat, "rocky-9.3 and rocky-9 share the matching key rocky-9")
	assert.Len(t, deriver.ensured, 1)
}

func TestReconcileVulnDoesNotCrossPackageNames(t *testing.T) {
	store := newFakeStore()
	depPkg := store.addPackage(model.NewOSPackage("zlib", "rocky-9.3", nil))
	pv := store.addPackageVersion(model.NewPackageVersion(depPkg.Key, "1.2.11-1.el9"))
	advPkg := store.addPackage(model.NewOSPackage("openssl", "rocky-9", nil))
	vuln := store.addVuln(model.NewVuln("keyslot overflow", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, advPkg.Key, []string{"< 3.0.7-2.el9"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.Nil(t, threat, "the matching key joins tags, never package names")
}

func TestReconcileVulnNotFound(t *testing.T) {
	store := newFakeStore()
	engine, _, _ := newTestEngine(store)
	err := engine.ReconcileVuln(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReconcilePackageVersionCreatesAndCleansThreats(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("requests", "pypi"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "2.19.0"))
	vulnA := store.addVuln(model.NewVuln("cookie leak", "detail"))
	store.addAffect(model.NewAffect(vulnA.Key, pkg.Key, []string{"< 2.20.0"}, nil))
	vulnB := store.addVuln(model.NewVuln("old bug", "detail"))
	store.addAffect(model.NewAffect(vulnB.Key, pkg.Key, []string{"< 2.0"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcilePackageVersion(context.Background(), pv.Key))

	threatA, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vulnA.Key)
	require.NoError(t, err)
	assert.NotNil(t, threatA)
	threatB, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vulnB.Key)
	require.NoError(t, err)
	assert.Nil(t, threatB)
}

func TestReconcilePackageVersionMatchesAcrossDistroPatchTags(t *testing.T) {
	store := newFakeStore()
	depPkg := store.addPackage(model.NewOSPackage("openssl", "rocky-9.3", nil))
	pv := store.addPackageVersion(model.NewPackageVersion(depPkg.Key, "3.0.7-1.el9"))
	advPkg := store.addPackage(model.NewOSPackage("openssl", "rocky-9", nil))
	vuln := store.addVuln(model.NewVuln("keyslot overflow", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, advPkg.Key, []string{"< 3.0.7-2.el9"}, nil))

	engine, _, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcilePackageVersion(context.Background(), pv.Key))

	threat, err := store.GetThreatByPackageVersionAndVuln(context.Background(), pv.Key, vuln.Key)
	require.NoError(t, err)
	assert.NotNil(t, threat, "affects recorded under rocky-9 cover a rocky-9.3 dependency")
}

func TestRemovePackageVersionCascades(t *testing.T) {
	store := newFakeStore()
	pkg := store.addPackage(model.NewLangPackage("lodash", "npm"))
	pv := store.addPackageVersion(model.NewPackageVersion(pkg.Key, "1.2"))
	vuln := store.addVuln(model.NewVuln("prototype pollution", "detail"))
	store.addAffect(model.NewAffect(vuln.Key, pkg.Key, []string{"< 2.0"}, nil))

	engine, deriver, _ := newTestEngine(store)
	require.NoError(t, engine.ReconcileVuln(context.Background(), vuln.Key))
	require.NoError(t, engine.RemovePackageVersion(context.Background(), pv.Key))

	threats, err := store.GetThreatsByVulnID(context.Background(), vuln.Key)
	require.NoError(t, err)
	assert.Empty(t, threats)
	assert.Len(t, deriver.removed, 1)
}
