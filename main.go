// Package main provides the entry point for the threatmgt-backend
// microservice: vulnerability and dependency ingestion, threat
// reconciliation, SSVC ticket derivation, EOL tracking, and the GraphQL
// dashboard API.
package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/nttcom/threatconnectome-sub003/database"
	"github.com/nttcom/threatconnectome-sub003/internal/api"
	"github.com/nttcom/threatconnectome-sub003/internal/kafka"
	"github.com/nttcom/threatconnectome-sub003/internal/notify"
	"github.com/nttcom/threatconnectome-sub003/internal/reconcile"
	"github.com/nttcom/threatconnectome-sub003/internal/ticket"
	"github.com/nttcom/threatconnectome-sub003/util"
)

func main() {
	// Initialize database connection
	db := database.InitializeDatabase()
	store := database.NewStore(db)

	zlogger := database.InitLogger()
	defer zlogger.Sync() //nolint:errcheck
	logger := zlogger.Sugar()

	catalog, err := ticket.LoadDefaultCatalog()
	if err != nil {
		log.Fatalf("Failed to load SSVC decision catalog: %v", err)
	}
	deriver := ticket.NewDeriver(store, catalog, logger)

	var notifier reconcile.Notifier
	botToken := os.Getenv("SLACK_BOT_TOKEN")
	if botToken != "" {
		defaultChannel := util.GetEnvDefault("SLACK_DEFAULT_CHANNEL", "#security")
		slackNotifier := notify.NewSlackNotifier(botToken, defaultChannel, logger)
		deriver.SetAlerter(slackNotifier)
		notifier = slackNotifier
	} else {
		logger.Warn("SLACK_BOT_TOKEN not set, EOL notifications disabled")
		notifier = notify.NopNotifier{}
	}

	engine := reconcile.NewEngine(store, deriver, notifier, logger)

	// Kafka consumer for vuln feed events
	ctx := context.Background()
	if err := kafka.RunEventProcessor(ctx, store, engine); err != nil {
		logger.Warnw("Kafka event processor unavailable, continuing without it", zap.Error(err))
	}

	app := api.NewFiberApp(store, engine)

	// Get port from environment or default to 3000
	port := util.GetEnvDefault("MS_PORT", "3000")

	log.Printf("Starting server on port %s", port)
	log.Printf("GraphQL endpoint available at /api/v1/graphql")
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
