package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"delivery-verification/internal/core/cache"
	"delivery-verification/internal/core/config"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/core/server"
	"delivery-verification/internal/core/storage"
	locationadapter "delivery-verification/internal/features/location/adapters"
	locationhandler "delivery-verification/internal/features/location/handler"
	routeadapter "delivery-verification/internal/features/routes/adapters"
	routehandler "delivery-verification/internal/features/routes/handler"
	routeservice "delivery-verification/internal/features/routes/service"
	syncadapter "delivery-verification/internal/features/sync/adapters"
	synchandler "delivery-verification/internal/features/sync/handler"
	syncservice "delivery-verification/internal/features/sync/service"
	verificationadapter "delivery-verification/internal/features/verification/adapters"
	verificationdomain "delivery-verification/internal/features/verification/domain"
	verificationhandler "delivery-verification/internal/features/verification/handler"
	verificationservice "delivery-verification/internal/features/verification/service"

	"go.uber.org/zap"
)

// @title Delivery Verification API
// @version 1.0
// @description This API captures GPS-validated delivery verifications offline and reconciles them with a DHIS2 backend.
// @contact.name API Support
// @contact.email support@deliveryverification.com
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Local store. The application keeps working against it while the
	// remote system is unreachable.
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		l.Fatal("Failed to open local database", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := cache.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		l.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Close()

	routeRepo := routeadapter.NewSQLiteRouteRepository(db)
	verificationRepo := verificationadapter.NewSQLiteVerificationRepository(db)

	// Routes feature
	routeSource := routeadapter.NewDHIS2RouteSource(cfg.Remote)
	routeService := routeservice.NewRouteService(routeRepo, routeSource, redisCache)
	routeHandler := routehandler.NewRouteHandler(routeService)

	// Location feature
	locationProvider := locationadapter.NewGPSDProvider(cfg.Location)
	locationHandler := locationhandler.NewLocationHandler(locationProvider)

	// Verification feature
	validator := verificationdomain.Validator{
		MaxAccuracyMeters: cfg.GPS.MaxAccuracyMeters,
		MaxDistanceMeters: cfg.GPS.MaxDistanceMeters,
	}
	captureService := verificationservice.NewCaptureService(
		verificationRepo, routeRepo, locationProvider, validator)
	verificationHandler := verificationhandler.NewVerificationHandler(captureService)

	// Sync feature
	sessions := syncadapter.NewConfigSessionProvider(cfg.Remote)
	eventClient := syncadapter.NewDHIS2EventClient(cfg.Remote)
	connectivity := syncadapter.NewPingConnectivity(sessions, eventClient)
	reconciler := syncservice.NewReconciler(
		verificationRepo, routeRepo, sessions, eventClient,
		cfg.Remote.ProgramID, cfg.Remote.StageID)
	scheduler := syncservice.NewScheduler(reconciler, connectivity, cfg.Sync)
	syncHandler := synchandler.NewSyncHandler(scheduler, verificationRepo)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	srv := server.New(cfg)

	// Register Routes
	srv.App.Get("/routes", routeHandler.ListRoutes)
	srv.App.Post("/routes/import", routeHandler.ImportRoutes)
	srv.App.Get("/routes/:id", routeHandler.GetRoute)
	srv.App.Patch("/routes/:id/status", routeHandler.UpdateRouteStatus)
	srv.App.Delete("/routes/:id", routeHandler.DeleteRoute)

	srv.App.Patch("/deliveries/:id/status", routeHandler.UpdateDeliveryStatus)
	srv.App.Post("/deliveries/:id/check", verificationHandler.CheckLocation)
	srv.App.Post("/deliveries/:id/verify", verificationHandler.Verify)
	srv.App.Get("/deliveries/:id/verification", verificationHandler.GetVerification)

	srv.App.Get("/location/current", locationHandler.CurrentFix)

	srv.App.Post("/sync", syncHandler.SyncNow)
	srv.App.Get("/sync/status", syncHandler.GetStatus)
	srv.App.Delete("/sync/schedule", syncHandler.CancelSchedule)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		l.Info("Shutting down")
		srv.App.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
