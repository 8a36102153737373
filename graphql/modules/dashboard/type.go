// Package dashboard defines the GraphQL types for the application dashboard.
package dashboard

import (
	"github.com/graphql-go/graphql"
)

// DashboardOverviewType represents the high-level metrics for the top cards
var DashboardOverviewType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DashboardOverview",
	Fields: graphql.Fields{
		"total_services": &graphql.Field{Type: graphql.Int},
		"total_vulns":    &graphql.Field{Type: graphql.Int},
		"total_tickets":  &graphql.Field{Type: graphql.Int},
	},
})

// PriorityDistributionType represents the ticket breakdown for the pie/bar charts
var PriorityDistributionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PriorityDistribution",
	Fields: graphql.Fields{
		"immediate":    &graphql.Field{Type: graphql.Int},
		"out_of_cycle": &graphql.Field{Type: graphql.Int},
		"scheduled":    &graphql.Field{Type: graphql.Int},
		"defer":        &graphql.Field{Type: graphql.Int},
	},
})

// ThreatenedServiceType represents rows for the "most threatened services" table
var ThreatenedServiceType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ThreatenedService",
	Fields: graphql.Fields{
		"service_id":   &graphql.Field{Type: graphql.String},
		"service_name": &graphql.Field{Type: graphql.String},
		"threat_count": &graphql.Field{Type: graphql.Int},
	},
})

// ServiceTicketType represents one ticket row with its vuln and package context
var ServiceTicketType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ServiceTicket",
	Fields: graphql.Fields{
		"ticket_id":       &graphql.Field{Type: graphql.String},
		"vuln_id":         &graphql.Field{Type: graphql.String},
		"title":           &graphql.Field{Type: graphql.String},
		"priority":        &graphql.Field{Type: graphql.String},
		"handling_status": &graphql.Field{Type: graphql.String},
		"package_name":    &graphql.Field{Type: graphql.String},
		"ecosystem":       &graphql.Field{Type: graphql.String},
		"version":         &graphql.Field{Type: graphql.String},
		"cvss_score":      &graphql.Field{Type: graphql.Float},
	},
})
