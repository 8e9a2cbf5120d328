package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/config"
	"github.com/caredesk/scheduling/internal/directory"
	v1 "github.com/caredesk/scheduling/internal/handler/v1"
	"github.com/caredesk/scheduling/internal/notifier"
	"github.com/caredesk/scheduling/internal/repository"
	"github.com/caredesk/scheduling/internal/service"
	"github.com/caredesk/scheduling/pkg/auth"
	"github.com/caredesk/scheduling/pkg/cache"
	"github.com/caredesk/scheduling/pkg/clock"
	"github.com/caredesk/scheduling/pkg/database"
	"github.com/caredesk/scheduling/pkg/logger"
	"github.com/caredesk/scheduling/pkg/metrics"
	"github.com/caredesk/scheduling/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector("scheduling")

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go database.ReportPoolStats(statsCtx, db, collector)

	var availabilityCache cache.Cache
	if c, err := cache.NewRedis(cfg.Redis); err != nil {
		log.Warn("redis unavailable, availability caching disabled", zap.Error(err))
	} else {
		availabilityCache = c
	}

	kafkaNotifier := notifier.NewKafkaNotifier(cfg.Kafka, log)
	defer func() { _ = kafkaNotifier.Close() }()

	events := service.NewEventService(kafkaNotifier, collector, log)
	defer events.Shutdown()

	repo := repository.NewAppointmentRepository(db, collector)
	dir := directory.NewHTTPClient(cfg.Directory)
	clk := clock.System()

	appointmentSvc := service.NewAppointmentService(repo, events, clk, log)
	availabilitySvc := service.NewAvailabilityService(repo, dir, clk, log)
	detailSvc := service.NewDetailService(appointmentSvc, dir)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	availabilityHandler := v1.NewAvailabilityHandler(availabilitySvc, availabilityCache, cfg.Availability.CacheTTL, collector, log)
	appointmentHandler := v1.NewAppointmentHandler(appointmentSvc, detailSvc, availabilityHandler, log)
	verifier := auth.NewVerifier(cfg.JWT)

	devMode := cfg.App.Environment == "development" && cfg.JWT.Secret == ""
	v1.RegisterRoutes(router, appointmentHandler, availabilityHandler, verifier, collector, log, devMode)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
