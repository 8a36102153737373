// Package dashboard defines the GraphQL queries for the dashboard.
package dashboard

import (
	"github.com/graphql-go/graphql"

	"github.com/nttcom/threatconnectome-sub003/database"
)

// GetQueryFields returns the dashboard queries to be mounted in the root schema
func GetQueryFields(store *database.Store) graphql.Fields {
	return graphql.Fields{
		// Section 1: Top Cards (Overview)
		"dashboardOverview": &graphql.Field{
			Type: DashboardOverviewType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveOverview(p.Context, store)
			},
		},
		// Section 2: Charts (Ticket Priorities)
		"dashboardPriorities": &graphql.Field{
			Type: PriorityDistributionType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolvePriorityDistribution(p.Context, store)
			},
		},
		// Section 3: Tables (Most Threatened Services)
		"dashboardTopThreatened": &graphql.Field{
			Type: graphql.NewList(ThreatenedServiceType),
			Args: graphql.FieldConfigArgument{
				"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				limit := p.Args["limit"].(int)
				return ResolveTopThreatenedServices(p.Context, store, limit)
			},
		},
		// Section 4: Per-service ticket drill-down
		"serviceTickets": &graphql.Field{
			Type: graphql.NewList(ServiceTicketType),
			Args: graphql.FieldConfigArgument{
				"service_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				serviceID := p.Args["service_id"].(string)
				return ResolveServiceTickets(p.Context, store, serviceID)
			},
		},
	}
}
