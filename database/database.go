// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = InitLogger() // setup the logger

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// indexConfig holds one persistent index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
	Sparse     bool
}

var initDone = false          // has the data been initialized
var dbConnection DBConnection // database connection definition

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase is the function for connecting to the db engine, creating the database and collections
func InitializeDatabase() DBConnection {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var db arangodb.Database
	var collections map[string]arangodb.Collection
	const databaseName = "threatmgt"

	ctx := context.Background()

	if initDone {
		return dbConnection
	}

	dbhost := GetEnvDefault("ARANGO_HOST", "localhost")
	dbport := GetEnvDefault("ARANGO_PORT", "8529")
	dbuser := GetEnvDefault("ARANGO_USER", "root")
	dbpass := GetEnvDefault("ARANGO_PASS", "mypassword")
	dburl := GetEnvDefault("ARANGO_URL", "http://"+dbhost+":"+dbport)

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	err := backoff.RetryNotify(func() error {
		fmt.Println("Attempting to connect to ArangoDB")
		endpoint := connection.NewRoundRobinEndpoints([]string{dburl})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, dbuser, dbpass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'\n", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		fmt.Printf("Retrying connection to ArangoDB: %v\n", err)
	})

	if err != nil {
		logger.Sugar().Fatalf("Backoff Error %v\n", err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			logger.Sugar().Fatalf("Failed to get Database: %v", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			logger.Sugar().Fatalf("Failed to create Database: %v", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections = make(map[string]arangodb.Collection)
	collectionNames := []string{
		"team", "service", "dependency",
		"package", "package_version",
		"vuln", "affect", "threat", "ticket", "ticket_status",
		"eol_product", "eol_version",
		"ecosystem_eol_dependency", "package_eol_dependency",
	}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use collection: %v", err)
			}
		} else {
			if col, err = db.CreateCollectionV2(ctx, collectionName, nil); err != nil {
				logger.Sugar().Fatalf("Failed to create collection: %v", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Index creation
	//

	idxList := []indexConfig{
		// Package identity: one record per (ecosystem, name)
		{Collection: "package", IdxName: "package_identity", IdxFields: []string{"ecosystem", "name"}, Unique: true},
		{Collection: "package", IdxName: "package_name", IdxFields: []string{"name"}},
		// Threat matching joins packages on the normalized key, not the raw tag
		{Collection: "package", IdxName: "package_vuln_matching", IdxFields: []string{"vuln_matching_ecosystem", "name"}},

		// One version record per (package, version string)
		{Collection: "package_version", IdxName: "package_version_identity", IdxFields: []string{"package_id", "version"}, Unique: true},
		{Collection: "package_version", IdxName: "package_version_package", IdxFields: []string{"package_id"}},

		// Dependency edges looked up per service and per package version
		{Collection: "dependency", IdxName: "dependency_service", IdxFields: []string{"service_id"}},
		{Collection: "dependency", IdxName: "dependency_package_version", IdxFields: []string{"package_version_id"}},

		{Collection: "service", IdxName: "service_team", IdxFields: []string{"team_id"}},

		// Fingerprint is the dedup key across vulnerability feeds; the advisory
		// id is the update key within one feed
		{Collection: "vuln", IdxName: "vuln_fingerprint", IdxFields: []string{"fingerprint"}, Sparse: true},
		{Collection: "vuln", IdxName: "vuln_advisory", IdxFields: []string{"advisory_id"}, Unique: true, Sparse: true},
		{Collection: "vuln", IdxName: "vuln_cvss_score", IdxFields: []string{"cvss_base_score"}},

		{Collection: "affect", IdxName: "affect_vuln", IdxFields: []string{"vuln_id"}},
		{Collection: "affect", IdxName: "affect_package", IdxFields: []string{"package_id"}},

		// The reconciliation invariant: at most one threat per pair. The unique
		// index turns a concurrent double insert into a conflict error.
		{Collection: "threat", IdxName: "threat_pair_unique", IdxFields: []string{"package_version_id", "vuln_id"}, Unique: true},
		{Collection: "threat", IdxName: "threat_vuln", IdxFields: []string{"vuln_id"}},
		{Collection: "threat", IdxName: "threat_package_version", IdxFields: []string{"package_version_id"}},

		{Collection: "ticket", IdxName: "ticket_threat_unique", IdxFields: []string{"threat_id"}, Unique: true},
		{Collection: "ticket", IdxName: "ticket_priority", IdxFields: []string{"ssvc_deployer_priority"}},
		{Collection: "ticket_status", IdxName: "ticket_status_ticket", IdxFields: []string{"ticket_id"}},

		{Collection: "eol_version", IdxName: "eol_version_product", IdxFields: []string{"product_id"}},
		{Collection: "eol_version", IdxName: "eol_version_matching", IdxFields: []string{"matching_version"}},

		{Collection: "ecosystem_eol_dependency", IdxName: "eco_eol_service", IdxFields: []string{"service_id"}},
		{Collection: "ecosystem_eol_dependency", IdxName: "eco_eol_dependency", IdxFields: []string{"dependency_id"}},
		{Collection: "package_eol_dependency", IdxName: "pkg_eol_dependency", IdxFields: []string{"dependency_id"}},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			unique := idx.Unique
			sparse := idx.Sparse
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &unique,
				Sparse: &sparse,
				Name:   idx.IdxName,
			}

			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions)
			if err != nil {
				logger.Sugar().Fatalln("Error creating index:", err)
			} else {
				logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
			}
		}
	}

	initDone = true

	dbConnection = DBConnection{
		Database:    db,
		Collections: collections,
	}

	logger.Sugar().Infof("Database initialization complete")

	return dbConnection
}
