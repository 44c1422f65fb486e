package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/database"
	"github.com/smukkama/drone-defense/internal/logging"
	"github.com/smukkama/drone-defense/internal/queue"
	"github.com/smukkama/drone-defense/pkg/config"
)

const (
	batchSize     = 100
	flushInterval = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	if !cfg.Database.Enabled() {
		log.Fatal("DB_HOST is required for the archiver")
	}
	if !cfg.Kafka.Enabled() {
		log.Fatal("KAFKA_BROKERS is required for the archiver")
	}

	fmt.Println("Starting Alert Archiver...")
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if err := db.RunMigrations("migrations"); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "archiver-group"
	}
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, group)
	defer consumer.Close()
	fmt.Println("Kafka consumer created (registering with broker...)")

	batchWriter := queue.NewBatchWriter(consumer, db, batchSize, flushInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batchWriter.Start(ctx)
	fmt.Println("Batch writer started")

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := consumer.Stats()
				log.WithFields(log.Fields{
					"messages": stats.Messages,
					"bytes":    stats.Bytes,
					"errors":   stats.Errors,
				}).Info("consumer stats")
			}
		}
	}()

	fmt.Println("\n✓ Alert Archiver is running")
	fmt.Printf("✓ Consuming %s and writing to PostgreSQL\n", cfg.Kafka.TopicAlerts)
	fmt.Printf("✓ Batch size: %d messages | Flush interval: %s\n", batchSize, flushInterval)
	fmt.Println("✓ Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	batchWriter.Stop()
	fmt.Println("Alert Archiver stopped")
}
