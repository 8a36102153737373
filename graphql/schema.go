// Package graphql assembles the root GraphQL schema from the per-module
// query fields.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/graphql/modules/dashboard"
)

// CreateSchema builds the root query schema over the given store.
func CreateSchema(store *database.Store) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range dashboard.GetQueryFields(store) {
		fields[name] = field
	}

	rootQuery := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: rootQuery,
	})
}
