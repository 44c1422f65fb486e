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
	"github.com/redis/go-redis/v9"

	"github.com/smukkama/drone-defense/internal/logging"
	"github.com/smukkama/drone-defense/internal/mockserver"
	"github.com/smukkama/drone-defense/internal/observability"
	"github.com/smukkama/drone-defense/internal/zone"
	"github.com/smukkama/drone-defense/pkg/config"
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

	fmt.Println("Starting Drone Mock Server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var zones zone.Repository
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).WithField("addr", cfg.Redis.Addr).Fatal("failed to connect to redis")
		}
		zones = zone.NewRedisStore(redisClient, cfg.Redis.ZonesKey, mockserver.DefaultZones())
		fmt.Printf("Zones stored in Redis (%s, key %s)\n", cfg.Redis.Addr, cfg.Redis.ZonesKey)
	} else {
		zones = zone.NewStore(mockserver.DefaultZones())
		fmt.Println("Zones stored in memory")
	}

	metrics, err := observability.NewMockCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.WithError(err).Fatal("failed to register metrics")
	}

	fleet := mockserver.NewFleet(mockserver.DefaultFleet())
	history := mockserver.NewHistory(cfg.MockServer.HistoryLimit)
	srv := mockserver.NewServer(zones, fleet, history, metrics, mockserver.Options{
		Region:        mockserver.DefaultRegion(),
		ReportTopSize: cfg.MockServer.ReportTopSize,
	})

	go srv.RunFleet(ctx, cfg.MockServer.FleetTick)
	fmt.Printf("Fleet simulation started (%d drones, tick %s)\n", fleet.Len(), cfg.MockServer.FleetTick)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MockServer.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("\n✓ Drone Mock Server is running on port %d\n", cfg.MockServer.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := waitForShutdown(sigCh, serverErr); err != nil {
		log.WithError(err).Error("mock server failed")
	}

	fmt.Println("\nShutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	fmt.Println("Drone Mock Server stopped")
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
