package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"timecapsule/config"
	"timecapsule/middleware"
	"timecapsule/routes"
	"timecapsule/utils"
	"timecapsule/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Transactional email
	mailer := utils.NewMailer(config.AppConfig.SMTP, log.New(os.Stdout, "MAILER: ", log.LstdFlags))

	// Initialize and start the unlock worker
	unlockWorker := worker.NewUnlockWorker(config.DB, mailer, log.New(os.Stdout, "UNLOCK: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go unlockWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, mailer)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
