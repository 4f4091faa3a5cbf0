package main

import (
	"log"

	"github.com/example/keydash/config"
	"github.com/example/keydash/handlers"
	"github.com/example/keydash/models"
	"github.com/example/keydash/services"
	"github.com/example/keydash/usage"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// 1. Load Config
	config.LoadConfig()

	// 2. Initialize DB
	models.InitDB(config.AppConfig.DatabaseURL)
	store := models.NewStore(models.DB)

	// 3. Initialize Services
	registry := services.NewRegistry()
	aggregator := usage.NewAggregator(store, registry, config.AppConfig.UsageWorkers)

	// 4. Initialize Handlers
	h := handlers.NewHandler(store, registry, aggregator)

	// 5. Setup Echo
	e := echo.New()

	// Middleware
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			log.Printf("REQUEST: uri=%s status=%v", v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMiddleware.Recover())
	// The browser UI is served separately during development.
	e.Use(echoMiddleware.CORS())

	// 6. Routes
	api := e.Group(config.AppConfig.Prefix)

	api.GET("/accounts", h.GetAccounts)
	api.POST("/accounts", h.CreateAccount)
	api.PUT("/accounts/:id", h.UpdateAccount)
	api.DELETE("/accounts/:id", h.DeleteAccount)
	api.GET("/accounts/:id/admin-keys", h.GetAccountAdminKeys)

	api.GET("/keys", h.GetKeys)
	api.POST("/keys", h.CreateKey)
	api.PUT("/keys/:id", h.UpdateKey)
	api.DELETE("/keys/:id", h.DeleteKey)
	api.GET("/keys/:id/full", h.RevealKey)
	api.POST("/keys/:id/test", h.TestKey)

	api.GET("/usage", h.GetUsage)

	// 7. Start Server
	log.Printf("Starting server on %s", config.AppConfig.ListenAddr)
	if err := e.Start(config.AppConfig.ListenAddr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
