package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"audiototext/api-gateway/config"
	"audiototext/api-gateway/handlers"
	"audiototext/api-gateway/internal/aiclient"
	"audiototext/api-gateway/internal/billing"
	"audiototext/api-gateway/internal/capture"
	"audiototext/api-gateway/internal/history"
	"audiototext/api-gateway/internal/ledger"
	"audiototext/api-gateway/internal/quota"
	"audiototext/api-gateway/internal/transport"
	"audiototext/api-gateway/middleware"
)

func main() {
	config.InitLogger()

	// Initialize Supabase client
	if err := config.InitSupabase(); err != nil {
		config.Log.Fatalf("Failed to initialize Supabase: %v", err)
	}
	db := config.GetSupabaseClient()

	usageLedger := ledger.New(db, config.Log, config.FreeTierLimit())
	historyStore := history.New(db, config.Log)
	modelClient := aiclient.New(config.OpenAIBaseURL(), config.OpenAIKey(), config.TranscribeModel(), config.ChatModel(), config.Log)
	pipeline := transport.NewPipeline(modelClient)
	billingService := billing.NewService(config.BillingCheckoutURL(), config.BillingReconcileURL(), config.BillingAPIKey(), usageLedger, config.Log)
	captureSession := capture.NewSession(capture.NewDefaultDevice())
	defer captureSession.Close()

	h := handlers.NewApplicationHandler(pipeline, usageLedger, historyStore, billingService, captureSession, config.Log)

	resetScheduler, err := quota.NewScheduler(usageLedger, config.Log)
	if err != nil {
		config.Log.Fatalf("Failed to set up usage reset scheduler: %v", err)
	}
	resetScheduler.Start()
	defer resetScheduler.Stop()

	app := fiber.New()

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*", // Allow all origins for development
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.IdentityHeader,
	}))
	app.Use(middleware.RequestLogger())

	// Health check route
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	// Billing redirect landings: plain browser navigations from the
	// checkout provider, no identity header required.
	app.Get("/billing/success", h.BillingSuccess)
	app.Get("/billing/cancel", h.BillingCancel)
	app.Get("/billing/refresh", h.BillingRefresh)

	// API v1 routes, all identity-scoped
	apiV1 := app.Group("/api/v1", middleware.RequireIdentity())

	// Processing route
	apiV1.Post("/transcriptions/process", h.ProcessTranscription)

	// Capture session routes
	apiV1.Post("/capture/start", h.StartCapture)
	apiV1.Post("/capture/stop", h.StopCapture)
	apiV1.Get("/capture/status", h.CaptureStatus)
	apiV1.Delete("/capture", h.AbortCapture)

	// Session history routes
	apiV1.Get("/sessions", h.ListSessions)
	apiV1.Get("/sessions/:id", h.GetSession)
	apiV1.Patch("/sessions/:id/action-items/:itemId", h.ToggleActionItem)

	// Usage and plan routes
	apiV1.Get("/usage", h.GetUsage)
	apiV1.Get("/plans", h.GetPlans)

	// Billing routes
	apiV1.Post("/billing/checkout", h.CreateCheckout)
	apiV1.Post("/billing/reconcile", h.ReconcileBilling)

	config.Log.Infof("Starting API Gateway on port %s...", config.Port())
	config.Log.Fatal(app.Listen(":" + config.Port()))
}
