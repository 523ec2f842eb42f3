package routes

import (
	"time"

	"moa-be/internal/handlers"
	"moa-be/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authHandler *handlers.AuthHandler, partyHandler *handlers.PartyHandler, paymentHandler *handlers.PaymentHandler, billingHandler *handlers.BillingHandler, productHandler *handlers.ProductHandler) {
	// API v1
	v1 := r.Group("/api/v1")

	// Auth routes
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/profile", middleware.AuthRequired(), authHandler.GetProfile)
	}

	// Product routes (no auth required for browsing)
	products := v1.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProductByID)
	}

	// Party routes
	parties := v1.Group("/parties")
	parties.Use(middleware.AuthRequired())
	{
		// Charge-starting routes are rate limited per session
		chargeLimit := middleware.PaymentRateLimit(10, time.Minute)
		parties.POST("", chargeLimit, partyHandler.CreateParty)
		parties.POST("/:id/join", chargeLimit, partyHandler.JoinParty)
		parties.POST("/:id/deposit/retry", chargeLimit, partyHandler.RetryDeposit)

		parties.GET("", partyHandler.GetUserParties)
		parties.GET("/:id", partyHandler.GetPartyDetails)
		parties.GET("/:id/members", partyHandler.GetPartyMembers)
		parties.PUT("/:id/credential", partyHandler.ShareCredential)
		parties.DELETE("/:id/leave", partyHandler.LeaveParty)
		parties.DELETE("/:id", partyHandler.CloseParty)
		parties.POST("/:id/billing/run", billingHandler.RunMonthlyBilling)
	}

	// Payment routes
	payments := v1.Group("/payments")
	payments.Use(middleware.AuthRequired())
	{
		payments.GET("/callback", paymentHandler.HandleCallback)
		payments.GET("/fail", paymentHandler.HandleFailCallback)
		payments.GET("", paymentHandler.GetUserPayments)
	}

	// Billing credential routes
	billing := v1.Group("/billing")
	billing.Use(middleware.AuthRequired())
	{
		billing.POST("/credential", billingHandler.RegisterBillingKey)
		billing.GET("/credential", billingHandler.GetBillingCredential)
		billing.DELETE("/credential", billingHandler.DeleteBillingCredential)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
