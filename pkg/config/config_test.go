package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.PollInterval != 2*time.Second {
		t.Errorf("Expected default poll interval 2s, got %s", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.ClearAbsentDrones {
		t.Error("Expected CLEAR_ABSENT_DRONES to default to false")
	}
	if cfg.Redis.Enabled() || cfg.Kafka.Enabled() || cfg.NATS.Enabled() || cfg.Database.Enabled() {
		t.Error("Expected optional integrations disabled by default")
	}
	if cfg.Kafka.TopicAlerts != "drone.alerts" {
		t.Errorf("Expected alert topic drone.alerts, got %s", cfg.Kafka.TopicAlerts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("CLEAR_ABSENT_DRONES", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MOCK_PORT", "9000")
	t.Setenv("DB_HOST", "db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.PollInterval != 500*time.Millisecond {
		t.Errorf("Expected poll interval 500ms, got %s", cfg.Monitor.PollInterval)
	}
	if !cfg.Monitor.ClearAbsentDrones {
		t.Error("Expected CLEAR_ABSENT_DRONES=true")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Expected 2 trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.MockServer.Port != 9000 {
		t.Errorf("Expected mock port 9000, got %d", cfg.MockServer.Port)
	}
	if !cfg.Database.Enabled() {
		t.Error("Expected database enabled when DB_HOST is set")
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "-1s")
	if _, err := Load(); err == nil {
		t.Error("Expected error for negative poll interval")
	}
}

func TestGetEnvAsBoolFallsBack(t *testing.T) {
	t.Setenv("SOME_FLAG", "maybe")
	if !getEnvAsBool("SOME_FLAG", true) {
		t.Error("Expected fallback to default for unparsable bool")
	}
}
