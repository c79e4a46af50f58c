package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/EmpoweredVote/geofence-backend/internal/api"
	"github.com/EmpoweredVote/geofence-backend/internal/config"
	"github.com/EmpoweredVote/geofence-backend/internal/db"
	"github.com/EmpoweredVote/geofence-backend/internal/detector"
	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
	"github.com/EmpoweredVote/geofence-backend/internal/middleware"
	"github.com/EmpoweredVote/geofence-backend/internal/mqtt"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.LoadFromEnv()
	logging.Init("geofence-backend", cfg.LogLevel)
	log := logging.Logger
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	for _, origin := range splitOrigins(os.Getenv("CORS_ORIGINS")) {
		middleware.AllowOrigin(origin)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.Connect(db.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, LogLevel: db.ParseLogLevel(cfg.LogLevel)})
	store := regions.NewStore(db.DB)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to migrate region tables: %v", err)
	}
	if cfg.RegionsFile != "" {
		if err := seedIfEmpty(ctx, store, cfg.RegionsFile); err != nil {
			log.Fatalf("Failed to seed regions from %s: %v", cfg.RegionsFile, err)
		}
	}

	catalog := occupancy.NewCatalog(store)
	if err := catalog.Load(ctx); err != nil {
		log.Fatalf("Failed to load regions: %v", err)
	}
	log.Infof("Loaded %d regions", len(catalog.List()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	board := notify.NewStatusBoard()
	hub := notify.NewHub(
		notify.LogSink{Log: logging.Component("notify")},
		notify.MetricsSink{Metrics: m},
		board,
	)
	manager := occupancy.NewManager(catalog, func(deviceID string) []detector.Observer {
		return []detector.Observer{hub.Observer(deviceID)}
	})

	var broker mqtt.Client
	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		broker = mqtt.NewClient(cfg.MQTT, m)
		if err := broker.Connect(ctx); err != nil {
			// The client keeps retrying in the background.
			log.WithError(err).Warn("MQTT broker not reachable yet")
		}
		publisher = mqtt.NewPublisher(broker, cfg.MQTT.TopicPrefix, 0)
		hub.Add(publisher)
		if err := mqtt.NewEventRouter(manager, cfg.MQTT.TopicPrefix, m).Subscribe(ctx, broker); err != nil {
			log.WithError(err).Warn("MQTT event subscription deferred until connected")
		}
	}

	handler := api.SetupRoutes(api.Deps{
		Manager:   manager,
		Status:    board,
		Metrics:   m,
		Gatherer:  reg,
		TokenHash: cfg.DeviceTokenHash,
		Limiter:   middleware.NewRateLimiter(cfg.EventRateLimit, cfg.EventRateBurst),
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown")
	}
	// Stop event ingestion before the publisher stops accepting notifications.
	if broker != nil {
		broker.Disconnect()
	}
	if publisher != nil {
		publisher.Close()
	}
}
