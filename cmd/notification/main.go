package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/logging"
	"github.com/smukkama/drone-defense/internal/notification"
	"github.com/smukkama/drone-defense/internal/queue"
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
	if !cfg.Kafka.Enabled() {
		log.Fatal("KAFKA_BROKERS is required for the notification service")
	}

	fmt.Println("Starting Notification Service...")

	notifier := notification.NewEmailNotifier(&cfg.SMTP)

	// Optional; without SMTP the alerts are only logged
	if err := notifier.TestConnection(); err != nil {
		fmt.Printf("Note: %v (notifications will be logged only)\n", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notification.Run(ctx, consumer, notifier)
		close(done)
	}()

	fmt.Println("\n✓ Notification Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	cancel()
	<-done
}
