package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/Abraxas-365/flowpilot/pkg/config"
	"github.com/Abraxas-365/flowpilot/pkg/database"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Server.IsProduction() {
		log.SetFlags(log.LstdFlags)
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	log.Printf("🚀 Starting FlowPilot engine (%s)", cfg.Server.Environment)

	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer database.CloseRedis(redisClient)
	log.Println("✅ Connected to PostgreSQL and Redis")

	container, err := NewContainer(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Cleanup()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if err := container.StartBackgroundServices(bgCtx); err != nil {
		log.Fatalf("Failed to start background services: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "FlowPilot",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errxfiber.FiberErrorHandler(),
	})

	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(recover.New())
	// sin wildcard: AllowCredentials lo prohíbe
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CorsOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))

	setupRoutes(app, container)

	go func() {
		addr := ":" + cfg.Server.Port
		log.Printf("🚀 Server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏸️  Shutting down server...")

	// los turnos en curso terminan antes de soltar DB y Redis
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("❌ Error during server shutdown: %v", err)
	}

	log.Println("👋 Server stopped")
}

func setupRoutes(app *fiber.App, c *Container) {
	app.Get("/health", healthCheckHandler(c))

	if c.Config.Metrics.Enabled {
		app.Get(c.Config.Metrics.Path, adaptor.HTTPHandler(metrics.Handler()))
	}

	c.EngineRoutes.RegisterRoutes(app)

	app.Use(func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
			"path":  ctx.Path(),
		})
	})
}

func healthCheckHandler(c *Container) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		health := c.HealthCheck()

		status, code := "healthy", fiber.StatusOK
		for _, ok := range health {
			if !ok {
				status, code = "degraded", fiber.StatusServiceUnavailable
				break
			}
		}

		return ctx.Status(code).JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now(),
			"services":  health,
		})
	}
}
