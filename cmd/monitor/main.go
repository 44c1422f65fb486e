package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smukkama/drone-defense/internal/alerting"
	"github.com/smukkama/drone-defense/internal/alertlog"
	"github.com/smukkama/drone-defense/internal/api"
	"github.com/smukkama/drone-defense/internal/database"
	"github.com/smukkama/drone-defense/internal/logging"
	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/poller"
	"github.com/smukkama/drone-defense/internal/queue"
	"github.com/smukkama/drone-defense/internal/source"
	"github.com/smukkama/drone-defense/internal/stream"
	"github.com/smukkama/drone-defense/internal/zone"
	"github.com/smukkama/drone-defense/pkg/config"
)

const (
	maxStreamClients = 1000
	sourceName       = "monitor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	gin.SetMode(gin.ReleaseMode)

	fmt.Println("Starting Drone Monitor...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics, err := observability.NewMonitorCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.WithError(err).Fatal("failed to register metrics")
	}

	alerts := alertlog.New()
	zones := zone.NewStore(zone.Zones{})
	engine := alerting.NewEngine(alerts, alerting.Options{ClearAbsent: cfg.Monitor.ClearAbsentDrones})

	hub := stream.NewHub(maxStreamClients)
	defer hub.CloseAll()
	defer alerts.Subscribe(hub.HandleChange)()
	defer alerts.Subscribe(func(c alertlog.Change) {
		metrics.SetUnread(c.Unread)
	})()

	// Alert fan-out to Kafka and NATS
	var publishers []queue.Publisher
	if cfg.Kafka.Enabled() {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.NumPartitions, 1); err != nil {
			fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		publishers = append(publishers, producer)
		fmt.Printf("Kafka producer initialized (topic %s)\n", cfg.Kafka.TopicAlerts)
	}
	if cfg.NATS.Enabled() {
		natsPublisher := queue.NewNATSPublisher(cfg.NATS.Subject)
		if err := natsPublisher.Connect(cfg.NATS.URL); err != nil {
			log.WithError(err).Warn("nats unavailable, alerts will not be published there")
		} else {
			defer natsPublisher.Close()
			publishers = append(publishers, natsPublisher)
			fmt.Printf("NATS publisher initialized (subject %s)\n", cfg.NATS.Subject)
		}
	}

	var forwarder *queue.Forwarder
	if len(publishers) > 0 {
		forwarder = queue.NewForwarder(cfg.Monitor.ForwardBuffer, sourceName, publishers...)
		forwarder.Start(ctx)
		defer alerts.Subscribe(forwarder.HandleChange)()
	}

	deps := api.Deps{
		Alerts:  alerts,
		Zones:   zones,
		Hub:     hub,
		Metrics: metrics,
	}

	if cfg.Database.Enabled() {
		db, err := database.Connect(cfg.Database.ConnectionString())
		if err != nil {
			log.WithError(err).Warn("alert archive unavailable")
		} else {
			defer db.Close()
			deps.Archive = db
			fmt.Println("Connected to alert archive")
		}
	}

	client := source.NewClient(cfg.Monitor.SourceURL, cfg.Monitor.PollTimeout)
	p := poller.New(client, zones, engine, metrics, poller.Config{
		Interval: cfg.Monitor.PollInterval,
		Timeout:  cfg.Monitor.PollTimeout,
	})
	deps.Source = client
	deps.Drones = p
	deps.Editor = p

	stopPolling := p.Start(ctx)
	fmt.Printf("Polling %s every %s\n", client.BaseURL(), cfg.Monitor.PollInterval)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitor.Port),
		Handler:           api.NewHandler(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("\n✓ Drone Monitor is running on port %d\n", cfg.Monitor.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := waitForShutdown(sigCh, serverErr); err != nil {
		log.WithError(err).Error("monitor server failed")
	}

	fmt.Println("\nShutting down gracefully...")
	stopPolling()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}

	if forwarder != nil {
		forwarder.Stop()
		stats := forwarder.Stats()
		fmt.Printf("Alerts forwarded=%d dropped=%d failed=%d\n", stats.Forwarded, stats.Dropped, stats.Failed)
	}
	fmt.Println("Drone Monitor stopped")
}

// waitForShutdown blocks until a signal arrives or the HTTP server fails, so
// the caller's cleanup runs in both cases.
func waitForShutdown(sigCh <-chan os.Signal, serverErr <-chan error) error {
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutdown requested")
		return nil
	case err := <-serverErr:
		return err
	}
}
