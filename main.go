package main

import (
	"fmt"
	"log"

	"moa-be/internal/config"
	"moa-be/internal/database"
	"moa-be/internal/handlers"
	"moa-be/internal/middleware"
	"moa-be/internal/routes"
	"moa-be/internal/service"
	"moa-be/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load YAML configuration
	if err := config.LoadConfig(); err != nil {
		log.Printf("Warning: Failed to load YAML config: %v", err)
		log.Println("Using default configuration...")
	}

	// Initialize database
	db, err := database.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CustomLoggingMiddleware())
	r.Use(middleware.CORS())

	// Initialize services
	tossPay := service.NewTossPayService()
	emailSvc := service.NewEmailService()
	partySvc := services.NewPartyService(db)
	selector := services.NewCredentialSelector(services.NewPostgresCredentialStore(db))
	orchestrator := services.NewPaymentOrchestrator(
		services.NewPostgresStage(db),
		services.NewIdempotencyGuard(),
		selector,
		tossPay,
		partySvc,
	)
	billingSvc := services.NewBillingService(db, tossPay, selector, partySvc)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db)
	partyHandler := handlers.NewPartyHandler(db, partySvc, orchestrator, emailSvc)
	paymentHandler := handlers.NewPaymentHandler(db, orchestrator)
	billingHandler := handlers.NewBillingHandler(db, tossPay, billingSvc, partySvc)
	productHandler := handlers.NewProductHandler(db)

	// Setup routes
	routes.SetupRoutes(r, authHandler, partyHandler, paymentHandler, billingHandler, productHandler)

	// Start server
	appConfig := config.GetConfig()
	port := fmt.Sprintf("%d", appConfig.Server.Port)
	host := appConfig.Server.Host

	log.Printf("Server starting on %s:%s", host, port)
	if err := r.Run(host + ":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
