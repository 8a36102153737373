package database

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"
	"github.com/google/uuid"

	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/model"
)

// Store exposes the collections as typed operations. It satisfies the
// persistence interfaces of the reconcile and ticket packages.
type Store struct {
	conn DBConnection
}

// NewStore wraps an initialized database connection.
func NewStore(conn DBConnection) *Store {
	return &Store{conn: conn}
}

func (s *Store) query(ctx context.Context, query string, bindVars map[string]interface{}) (arangodb.Cursor, error) {
	return s.conn.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
}

// readOne reads the single result of a cursor into out, mapping an empty
// result to ErrNotFound.
func readOne(ctx context.Context, cursor arangodb.Cursor, out interface{}, what string) error {
	defer cursor.Close()
	if !cursor.HasMore() {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return err
	}
	return nil
}

func (s *Store) getByKey(ctx context.Context, collection, key string, out interface{}) error {
	cursor, err := s.query(ctx, fmt.Sprintf("FOR d IN %s FILTER d._key == @key LIMIT 1 RETURN d", collection),
		map[string]interface{}{"key": key})
	if err != nil {
		return err
	}
	return readOne(ctx, cursor, out, collection+" "+key)
}

func (s *Store) create(ctx context.Context, collection string, key *string, doc interface{}) error {
	if *key == "" {
		*key = uuid.NewString()
	}
	_, err := s.conn.Collections[collection].CreateDocument(ctx, doc)
	if err != nil {
		if shared.IsConflict(err) {
			return fmt.Errorf("%s insert: %w", collection, model.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) deleteByKey(ctx context.Context, collection, key string) error {
	_, err := s.conn.Collections[collection].DeleteDocument(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) {
			return fmt.Errorf("%s %s: %w", collection, key, model.ErrNotFound)
		}
		return err
	}
	return nil
}

func readAll[T any](ctx context.Context, cursor arangodb.Cursor) ([]T, error) {
	defer cursor.Close()
	var out []T
	for cursor.HasMore() {
		var item T
		if _, err := cursor.ReadDocument(ctx, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

//
// Teams and services
//

// CreateTeam inserts a team record.
func (s *Store) CreateTeam(ctx context.Context, t *model.Team) error {
	return s.create(ctx, "team", &t.Key, t)
}

// GetTeamByID fetches a team by key.
func (s *Store) GetTeamByID(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	if err := s.getByKey(ctx, "team", id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateService inserts a service record.
func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	return s.create(ctx, "service", &svc.Key, svc)
}

// GetServiceByID fetches a service by key.
func (s *Store) GetServiceByID(ctx context.Context, id string) (*model.Service, error) {
	var svc model.Service
	if err := s.getByKey(ctx, "service", id, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// UpdateService replaces a service record.
func (s *Store) UpdateService(ctx context.Context, svc *model.Service) error {
	_, err := s.conn.Collections["service"].ReplaceDocument(ctx, svc.Key, svc)
	if shared.IsNotFound(err) {
		return fmt.Errorf("service %s: %w", svc.Key, model.ErrNotFound)
	}
	return err
}

// GetAllServices returns every service. Used by catalog-wide EOL resyncs.
func (s *Store) GetAllServices(ctx context.Context) ([]model.Service, error) {
	cursor, err := s.query(ctx, "FOR svc IN service RETURN svc", nil)
	if err != nil {
		return nil, err
	}
	return readAll[model.Service](ctx, cursor)
}

//
// Packages and versions
//

// GetPackageByID fetches a package by key.
func (s *Store) GetPackageByID(ctx context.Context, id string) (*model.Package, error) {
	var p model.Package
	if err := s.getByKey(ctx, "package", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPackage looks a package up by its (ecosystem, name) identity. Returns
// nil when absent.
func (s *Store) FindPackage(ctx context.Context, ecosystem, name string) (*model.Package, error) {
	cursor, err := s.query(ctx,
		"FOR p IN package FILTER p.ecosystem == @ecosystem AND p.name == @name LIMIT 1 RETURN p",
		map[string]interface{}{"ecosystem": ecosystem, "name": name})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var p model.Package
	if _, err := cursor.ReadDocument(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPackagesByVulnMatchingEcosystem returns every package sharing the
// normalized matching key and name, across raw distro tags. This is the join
// threat reconciliation pivots on: an advisory recorded under "rocky-9" must
// reach a dependency tagged "rocky-9.3".
func (s *Store) GetPackagesByVulnMatchingEcosystem(ctx context.Context, matchingKey, name string) ([]model.Package, error) {
	cursor, err := s.query(ctx,
		"FOR p IN package FILTER p.vuln_matching_ecosystem == @key AND p.name == @name RETURN p",
		map[string]interface{}{"key": matchingKey, "name": name})
	if err != nil {
		return nil, err
	}
	return readAll[model.Package](ctx, cursor)
}

// EnsurePackage finds or inserts the package record for the identity.
func (s *Store) EnsurePackage(ctx context.Context, pkg *model.Package) (*model.Package, error) {
	existing, err := s.FindPackage(ctx, pkg.Ecosystem, pkg.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if err := s.create(ctx, "package", &pkg.Key, pkg); err != nil {
		// Lost a concurrent insert race; the winner's record is the identity.
		if existing, ferr := s.FindPackage(ctx, pkg.Ecosystem, pkg.Name); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return pkg, nil
}

// GetPackageVersionByID fetches a package version by key.
func (s *Store) GetPackageVersionByID(ctx context.Context, id string) (*model.PackageVersion, error) {
	var pv model.PackageVersion
	if err := s.getByKey(ctx, "package_version", id, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// GetPackageVersionsByPackageID returns every stored version of a package.
func (s *Store) GetPackageVersionsByPackageID(ctx context.Context, packageID string) ([]model.PackageVersion, error) {
	cursor, err := s.query(ctx,
		"FOR pv IN package_version FILTER pv.package_id == @package_id RETURN pv",
		map[string]interface{}{"package_id": packageID})
	if err != nil {
		return nil, err
	}
	return readAll[model.PackageVersion](ctx, cursor)
}

// FindPackageVersion looks up a version record of a package. Returns nil when
// absent.
func (s *Store) FindPackageVersion(ctx context.Context, packageID, version string) (*model.PackageVersion, error) {
	cursor, err := s.query(ctx,
		"FOR pv IN package_version FILTER pv.package_id == @package_id AND pv.version == @version LIMIT 1 RETURN pv",
		map[string]interface{}{"package_id": packageID, "version": version})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var pv model.PackageVersion
	if _, err := cursor.ReadDocument(ctx, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// EnsurePackageVersion finds or inserts the version record.
func (s *Store) EnsurePackageVersion(ctx context.Context, pv *model.PackageVersion) (*model.PackageVersion, error) {
	existing, err := s.FindPackageVersion(ctx, pv.PackageID, pv.Version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if err := s.create(ctx, "package_version", &pv.Key, pv); err != nil {
		if existing, ferr := s.FindPackageVersion(ctx, pv.PackageID, pv.Version); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return pv, nil
}

// DeletePackageVersion removes a version record.
func (s *Store) DeletePackageVersion(ctx context.Context, packageVersionID string) error {
	return s.deleteByKey(ctx, "package_version", packageVersionID)
}

//
// Dependencies
//

// CreateDependency inserts a dependency edge.
func (s *Store) CreateDependency(ctx context.Context, d *model.Dependency) error {
	return s.create(ctx, "dependency", &d.Key, d)
}

// GetDependenciesByServiceID returns the dependency edges of a service.
func (s *Store) GetDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.Dependency, error) {
	cursor, err := s.query(ctx,
		"FOR d IN dependency FILTER d.service_id == @service_id RETURN d",
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Dependency](ctx, cursor)
}

// GetDependenciesByPackageVersion returns every dependency edge pointing at a
// package version, across all services.
func (s *Store) GetDependenciesByPackageVersion(ctx context.Context, packageVersionID string) ([]model.Dependency, error) {
	cursor, err := s.query(ctx,
		"FOR d IN dependency FILTER d.package_version_id == @pv_id RETURN d",
		map[string]interface{}{"pv_id": packageVersionID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Dependency](ctx, cursor)
}

// DeleteDependency removes a dependency edge.
func (s *Store) DeleteDependency(ctx context.Context, dependencyID string) error {
	return s.deleteByKey(ctx, "dependency", dependencyID)
}

//
// Vulns and affects
//

// GetVulnByID fetches a vuln by key.
func (s *Store) GetVulnByID(ctx context.Context, id string) (*model.Vuln, error) {
	var v model.Vuln
	if err := s.getByKey(ctx, "vuln", id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindVulnByFingerprint returns the vuln carrying the content fingerprint, or
// nil when no feed has delivered it yet.
func (s *Store) FindVulnByFingerprint(ctx context.Context, fingerprint string) (*model.Vuln, error) {
	cursor, err := s.query(ctx,
		"FOR v IN vuln FILTER v.fingerprint == @fp LIMIT 1 RETURN v",
		map[string]interface{}{"fp": fingerprint})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var v model.Vuln
	if _, err := cursor.ReadDocument(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindVulnByAdvisoryID returns the vuln ingested under the given feed
// identifier, or nil when the advisory is new.
func (s *Store) FindVulnByAdvisoryID(ctx context.Context, advisoryID string) (*model.Vuln, error) {
	cursor, err := s.query(ctx,
		"FOR v IN vuln FILTER v.advisory_id == @id LIMIT 1 RETURN v",
		map[string]interface{}{"id": advisoryID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var v model.Vuln
	if _, err := cursor.ReadDocument(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVuln inserts a vuln record.
func (s *Store) CreateVuln(ctx context.Context, v *model.Vuln) error {
	return s.create(ctx, "vuln", &v.Key, v)
}

// UpdateVuln replaces a vuln record.
func (s *Store) UpdateVuln(ctx context.Context, v *model.Vuln) error {
	_, err := s.conn.Collections["vuln"].ReplaceDocument(ctx, v.Key, v)
	if shared.IsNotFound(err) {
		return fmt.Errorf("vuln %s: %w", v.Key, model.ErrNotFound)
	}
	return err
}

// DeleteVuln removes a vuln record together with its affect rows.
func (s *Store) DeleteVuln(ctx context.Context, vulnID string) error {
	cursor, err := s.query(ctx,
		"FOR a IN affect FILTER a.vuln_id == @vuln_id REMOVE a IN affect",
		map[string]interface{}{"vuln_id": vulnID})
	if err != nil {
		return fmt.Errorf("clear affects of vuln %s: %w", vulnID, err)
	}
	cursor.Close()
	return s.deleteByKey(ctx, "vuln", vulnID)
}

// GetAffectsByVulnID returns the affect rows of a vuln.
func (s *Store) GetAffectsByVulnID(ctx context.Context, vulnID string) ([]model.Affect, error) {
	cursor, err := s.query(ctx,
		"FOR a IN affect FILTER a.vuln_id == @vuln_id RETURN a",
		map[string]interface{}{"vuln_id": vulnID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Affect](ctx, cursor)
}

// GetAffectsByPackageID returns every affect row covering a package.
func (s *Store) GetAffectsByPackageID(ctx context.Context, packageID string) ([]model.Affect, error) {
	cursor, err := s.query(ctx,
		"FOR a IN affect FILTER a.package_id == @package_id RETURN a",
		map[string]interface{}{"package_id": packageID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Affect](ctx, cursor)
}

// ReplaceAffects swaps the affect rows of a vuln for the given set.
func (s *Store) ReplaceAffects(ctx context.Context, vulnID string, affects []model.Affect) error {
	cursor, err := s.query(ctx,
		"FOR a IN affect FILTER a.vuln_id == @vuln_id REMOVE a IN affect",
		map[string]interface{}{"vuln_id": vulnID})
	if err != nil {
		return fmt.Errorf("clear affects of vuln %s: %w", vulnID, err)
	}
	cursor.Close()

	for i := range affects {
		affects[i].VulnID = vulnID
		if err := s.create(ctx, "affect", &affects[i].Key, &affects[i]); err != nil {
			return fmt.Errorf("insert affect for vuln %s: %w", vulnID, err)
		}
	}
	return nil
}

//
// Threats
//

// GetThreatByPackageVersionAndVuln returns the threat row for the pair, or nil
// when the pair is not threatened.
func (s *Store) GetThreatByPackageVersionAndVuln(ctx context.Context, packageVersionID, vulnID string) (*model.Threat, error) {
	cursor, err := s.query(ctx,
		"FOR t IN threat FILTER t.package_version_id == @pv_id AND t.vuln_id == @vuln_id LIMIT 1 RETURN t",
		map[string]interface{}{"pv_id": packageVersionID, "vuln_id": vulnID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var t model.Threat
	if _, err := cursor.ReadDocument(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreatsByVulnID returns every threat row of a vuln.
func (s *Store) GetThreatsByVulnID(ctx context.Context, vulnID string) ([]model.Threat, error) {
	cursor, err := s.query(ctx,
		"FOR t IN threat FILTER t.vuln_id == @vuln_id RETURN t",
		map[string]interface{}{"vuln_id": vulnID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Threat](ctx, cursor)
}

// GetThreatsByPackageVersionID returns every threat row of a package version.
func (s *Store) GetThreatsByPackageVersionID(ctx context.Context, packageVersionID string) ([]model.Threat, error) {
	cursor, err := s.query(ctx,
		"FOR t IN threat FILTER t.package_version_id == @pv_id RETURN t",
		map[string]interface{}{"pv_id": packageVersionID})
	if err != nil {
		return nil, err
	}
	return readAll[model.Threat](ctx, cursor)
}

// CreateThreat inserts a threat row. The unique pair index maps a concurrent
// duplicate insert to ErrConflict.
func (s *Store) CreateThreat(ctx context.Context, t *model.Threat) error {
	return s.create(ctx, "threat", &t.Key, t)
}

// DeleteThreat removes a threat row.
func (s *Store) DeleteThreat(ctx context.Context, threatID string) error {
	return s.deleteByKey(ctx, "threat", threatID)
}

//
// Tickets
//

// GetTicketByThreatID returns the ticket of a threat, or nil when none exists.
func (s *Store) GetTicketByThreatID(ctx context.Context, threatID string) (*model.Ticket, error) {
	cursor, err := s.query(ctx,
		"FOR t IN ticket FILTER t.threat_id == @threat_id LIMIT 1 RETURN t",
		map[string]interface{}{"threat_id": threatID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var t model.Ticket
	if _, err := cursor.ReadDocument(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTicketByID fetches a ticket by key.
func (s *Store) GetTicketByID(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.getByKey(ctx, "ticket", id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTicket inserts a ticket.
func (s *Store) CreateTicket(ctx context.Context, t *model.Ticket) error {
	return s.create(ctx, "ticket", &t.Key, t)
}

// UpdateTicket replaces a ticket record.
func (s *Store) UpdateTicket(ctx context.Context, t *model.Ticket) error {
	_, err := s.conn.Collections["ticket"].ReplaceDocument(ctx, t.Key, t)
	if shared.IsNotFound(err) {
		return fmt.Errorf("ticket %s: %w", t.Key, model.ErrNotFound)
	}
	return err
}

// CreateTicketStatus inserts a ticket status row.
func (s *Store) CreateTicketStatus(ctx context.Context, st *model.TicketStatus) error {
	return s.create(ctx, "ticket_status", &st.Key, st)
}

// GetTicketStatus returns the status row of a ticket.
func (s *Store) GetTicketStatus(ctx context.Context, ticketID string) (*model.TicketStatus, error) {
	cursor, err := s.query(ctx,
		"FOR st IN ticket_status FILTER st.ticket_id == @ticket_id LIMIT 1 RETURN st",
		map[string]interface{}{"ticket_id": ticketID})
	if err != nil {
		return nil, err
	}
	var st model.TicketStatus
	if err := readOne(ctx, cursor, &st, "ticket status of "+ticketID); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateTicketStatus replaces a ticket status row.
func (s *Store) UpdateTicketStatus(ctx context.Context, st *model.TicketStatus) error {
	_, err := s.conn.Collections["ticket_status"].ReplaceDocument(ctx, st.Key, st)
	if shared.IsNotFound(err) {
		return fmt.Errorf("ticket status %s: %w", st.Key, model.ErrNotFound)
	}
	return err
}

// DeleteTicketByThreatID removes the ticket and status rows of a threat.
// Deleting for a threat with no ticket is a no-op.
func (s *Store) DeleteTicketByThreatID(ctx context.Context, threatID string) error {
	cursor, err := s.query(ctx, `
		FOR t IN ticket
			FILTER t.threat_id == @threat_id
			LET removedStatuses = (
				FOR st IN ticket_status FILTER st.ticket_id == t._key REMOVE st IN ticket_status
			)
			REMOVE t IN ticket`,
		map[string]interface{}{"threat_id": threatID})
	if err != nil {
		return fmt.Errorf("delete ticket of threat %s: %w", threatID, err)
	}
	cursor.Close()
	return nil
}

// ServiceTicket is a ticket joined with its threat context for API responses.
type ServiceTicket struct {
	Ticket      model.Ticket        `json:"ticket"`
	Status      *model.TicketStatus `json:"status,omitempty"`
	Threat      model.Threat        `json:"threat"`
	Vuln        model.Vuln          `json:"vuln"`
	PackageName string              `json:"package_name"`
	Ecosystem   string              `json:"ecosystem"`
	Version     string              `json:"version"`
}

// GetTicketsByServiceID returns the tickets touching a service's dependencies,
// joined with their vuln and package context.
func (s *Store) GetTicketsByServiceID(ctx context.Context, serviceID string) ([]ServiceTicket, error) {
	cursor, err := s.query(ctx, `
		FOR d IN dependency
			FILTER d.service_id == @service_id
			FOR th IN threat
				FILTER th.package_version_id == d.package_version_id
				FOR t IN ticket
					FILTER t.threat_id == th._key
					LET v = FIRST(FOR v IN vuln FILTER v._key == th.vuln_id RETURN v)
					LET pv = FIRST(FOR pv IN package_version FILTER pv._key == th.package_version_id RETURN pv)
					LET p = FIRST(FOR p IN package FILTER p._key == pv.package_id RETURN p)
					LET st = FIRST(FOR st IN ticket_status FILTER st.ticket_id == t._key RETURN st)
					RETURN DISTINCT {
						ticket: t,
						status: st,
						threat: th,
						vuln: v,
						package_name: p.name,
						ecosystem: p.ecosystem,
						version: pv.version
					}`,
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return nil, err
	}
	return readAll[ServiceTicket](ctx, cursor)
}

// CollectionCounts returns the document count of each named collection.
func (s *Store) CollectionCounts(ctx context.Context, collections ...string) (map[string]int, error) {
	counts := make(map[string]int, len(collections))
	for _, name := range collections {
		cursor, err := s.query(ctx, `RETURN LENGTH(`+name+`)`, nil)
		if err != nil {
			return nil, err
		}
		var n int
		_, err = cursor.ReadDocument(ctx, &n)
		cursor.Close()
		if err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}

// TicketCountsByPriority returns how many open tickets exist per priority.
func (s *Store) TicketCountsByPriority(ctx context.Context) (map[model.SSVCPriority]int, error) {
	cursor, err := s.query(ctx, `
		FOR t IN ticket
			COLLECT priority = t.ssvc_deployer_priority WITH COUNT INTO n
			RETURN {priority: priority, count: n}`, nil)
	if err != nil {
		return nil, err
	}
	type row struct {
		Priority model.SSVCPriority `json:"priority"`
		Count    int                `json:"count"`
	}
	rows, err := readAll[row](ctx, cursor)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.SSVCPriority]int, len(rows))
	for _, r := range rows {
		counts[r.Priority] = r.Count
	}
	return counts, nil
}

// ServiceThreatCount pairs a service with its open threat count.
type ServiceThreatCount struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	ThreatCount int    `json:"threat_count"`
}

// TopThreatenedServices lists services ordered by open threat count.
func (s *Store) TopThreatenedServices(ctx context.Context, limit int) ([]ServiceThreatCount, error) {
	cursor, err := s.query(ctx, `
		FOR d IN dependency
			FOR th IN threat
				FILTER th.package_version_id == d.package_version_id
				COLLECT serviceID = d.service_id WITH COUNT INTO n
				SORT n DESC
				LIMIT @limit
				LET svc = FIRST(FOR svc IN service FILTER svc._key == serviceID RETURN svc)
				RETURN {service_id: serviceID, service_name: svc.name, threat_count: n}`,
		map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, err
	}
	return readAll[ServiceThreatCount](ctx, cursor)
}

//
// EOL catalog
//

// ReplaceEoLProduct upserts a catalog product and swaps its version windows.
func (s *Store) ReplaceEoLProduct(ctx context.Context, product *model.EoLProduct, versions []model.EoLVersion) error {
	existing, err := s.findEoLProductByName(ctx, product.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		product.Key = existing.Key
		if _, err := s.conn.Collections["eol_product"].ReplaceDocument(ctx, product.Key, product); err != nil {
			return err
		}
		cursor, err := s.query(ctx,
			"FOR v IN eol_version FILTER v.product_id == @product_id REMOVE v IN eol_version",
			map[string]interface{}{"product_id": product.Key})
		if err != nil {
			return err
		}
		cursor.Close()
	} else {
		if err := s.create(ctx, "eol_product", &product.Key, product); err != nil {
			return err
		}
	}

	for i := range versions {
		versions[i].ProductID = product.Key
		if err := s.create(ctx, "eol_version", &versions[i].Key, &versions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) findEoLProductByName(ctx context.Context, name string) (*model.EoLProduct, error) {
	cursor, err := s.query(ctx,
		"FOR p IN eol_product FILTER p.name == @name LIMIT 1 RETURN p",
		map[string]interface{}{"name": name})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, nil
	}
	var p model.EoLProduct
	if _, err := cursor.ReadDocument(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAllEoLProducts returns the full catalog with version windows attached.
func (s *Store) GetAllEoLProducts(ctx context.Context) ([]reconcile.EoLProductWithVersions, error) {
	cursor, err := s.query(ctx, `
		FOR p IN eol_product
			LET versions = (FOR v IN eol_version FILTER v.product_id == p._key RETURN v)
			RETURN {product: p, versions: versions}`, nil)
	if err != nil {
		return nil, err
	}
	type row struct {
		Product  model.EoLProduct   `json:"product"`
		Versions []model.EoLVersion `json:"versions"`
	}
	rows, err := readAll[row](ctx, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.EoLProductWithVersions, 0, len(rows))
	for _, r := range rows {
		out = append(out, reconcile.EoLProductWithVersions{Product: r.Product, Versions: r.Versions})
	}
	return out, nil
}

// GetEcosystemEoLDependenciesByServiceID returns the ecosystem-level EOL rows
// of a service.
func (s *Store) GetEcosystemEoLDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.EcosystemEoLDependency, error) {
	cursor, err := s.query(ctx,
		"FOR r IN ecosystem_eol_dependency FILTER r.service_id == @service_id RETURN r",
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return nil, err
	}
	return readAll[model.EcosystemEoLDependency](ctx, cursor)
}

// GetPackageEoLDependenciesByServiceID returns the package-level EOL rows of a
// service, joined through its dependency edges.
func (s *Store) GetPackageEoLDependenciesByServiceID(ctx context.Context, serviceID string) ([]model.PackageEoLDependency, error) {
	cursor, err := s.query(ctx, `
		FOR d IN dependency
			FILTER d.service_id == @service_id
			FOR r IN package_eol_dependency
				FILTER r.dependency_id == d._key
				RETURN r`,
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return nil, err
	}
	return readAll[model.PackageEoLDependency](ctx, cursor)
}

// DeleteEoLDependenciesByServiceID drops both kinds of EOL rows for a service
// ahead of a resync.
func (s *Store) DeleteEoLDependenciesByServiceID(ctx context.Context, serviceID string) error {
	cursor, err := s.query(ctx,
		"FOR r IN ecosystem_eol_dependency FILTER r.service_id == @service_id REMOVE r IN ecosystem_eol_dependency",
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return err
	}
	cursor.Close()

	cursor, err = s.query(ctx, `
		FOR d IN dependency
			FILTER d.service_id == @service_id
			FOR r IN package_eol_dependency
				FILTER r.dependency_id == d._key
				REMOVE r IN package_eol_dependency`,
		map[string]interface{}{"service_id": serviceID})
	if err != nil {
		return err
	}
	cursor.Close()
	return nil
}

// CreateEcosystemEoLDependency inserts an ecosystem-level EOL row.
func (s *Store) CreateEcosystemEoLDependency(ctx context.Context, d *model.EcosystemEoLDependency) error {
	return s.create(ctx, "ecosystem_eol_dependency", &d.Key, d)
}

// CreatePackageEoLDependency inserts a package-level EOL row.
func (s *Store) CreatePackageEoLDependency(ctx context.Context, d *model.PackageEoLDependency) error {
	return s.create(ctx, "package_eol_dependency", &d.Key, d)
}
