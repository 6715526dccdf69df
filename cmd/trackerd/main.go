package main

import (
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/clock"
	"github.com/tamilselvan8428/person-tracking/internal/handler"
	"github.com/tamilselvan8428/person-tracking/internal/middleware"
	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/internal/registry"
	"github.com/tamilselvan8428/person-tracking/internal/tracking"
	"github.com/tamilselvan8428/person-tracking/pkg/config"
	"github.com/tamilselvan8428/person-tracking/pkg/database"
	"github.com/tamilselvan8428/person-tracking/pkg/jwtutil"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"github.com/tamilselvan8428/person-tracking/prometheus"
)

func main() {
	// Load configuration
	conf, err := config.Load("tracker")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.Info("Starting tracker", conf.LogConfig()...)

	// Initialize database connection
	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database")
	}

	// Run migrations
	if err := database.MigrateModels(
		&model.Tenant{},
		&model.User{},
		&model.TenantUser{},
		&model.Device{},
		&model.Observation{},
	); err != nil {
		log.Fatal("Failed to migrate database models")
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	})

	// Core engines
	clk := clock.System()
	registrySvc := registry.NewService(db, clk, conf.Tracking, log)
	trackingSvc := tracking.NewService(db, clk, conf.Tracking, log)

	// Handlers
	authHandler := handler.NewAuthHandler(db, jwt)
	deviceHandler := handler.NewDeviceHandler(registrySvc)
	trackingHandler := handler.NewTrackingHandler(trackingSvc)

	// Initialize Echo framework
	e := echo.New()

	// Apply middleware
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public endpoints
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.POST("/auth/login", authHandler.Login)

	// Device-to-server channel (unauthenticated by design)
	e.POST("/devices/heartbeat", deviceHandler.Heartbeat)
	e.GET("/devices/config", deviceHandler.Config)
	e.POST("/tracking/update", trackingHandler.Update)

	// Provisioning
	auth := e.Group("/auth")
	auth.Use(middleware.JWTAuthMiddleware(jwt))
	auth.POST("/tenant-admins", authHandler.CreateTenantAdmin,
		middleware.RequireRole(principal.RolePlatformAdmin))
	auth.POST("/tenant-users", authHandler.CreateTenantUser,
		middleware.RequireRole(principal.RoleTenantAdmin))

	// Tenant-scoped reads and device management
	devices := e.Group("/devices")
	devices.Use(middleware.JWTAuthMiddleware(jwt))
	devices.POST("/register", deviceHandler.Register, middleware.RequireScope(principal.ScopeConfig))
	devices.GET("", deviceHandler.List, middleware.RequireScope(principal.ScopeConfig))

	trackingGroup := e.Group("/tracking")
	trackingGroup.Use(middleware.JWTAuthMiddleware(jwt))
	trackingGroup.GET("/locations", trackingHandler.Locations, middleware.RequireScope(principal.ScopeTracking))

	// Start server
	log.Info("Starting person-tracking service on port " + conf.Server.Port)
	e.Logger.Fatal(e.Start(":" + conf.Server.Port))
}
