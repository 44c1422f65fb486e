package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	NATS       NATSConfig
	SMTP       SMTPConfig
	MockServer MockServerConfig
	Monitor    MonitorConfig
	Log        LogConfig
}

// DatabaseConfig points at the alert archive. An empty Host disables it.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig backs the mock server's zone store. An empty Addr keeps the
// zones in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ZonesKey string
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers       []string
	TopicAlerts   string
	ConsumerGroup string
	NumPartitions int
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type NATSConfig struct {
	URL     string
	Subject string
}

func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type MockServerConfig struct {
	Port          int
	FleetTick     time.Duration
	HistoryLimit  int
	ReportTopSize int
}

type MonitorConfig struct {
	Port              int
	SourceURL         string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	ClearAbsentDrones bool
	ForwardBuffer     int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "drone_user"),
			Password: getEnv("DB_PASSWORD", "drone_pass"),
			DBName:   getEnv("DB_NAME", "drone_defense"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			ZonesKey: getEnv("REDIS_ZONES_KEY", "drone_defense:zones"),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "drone.alerts"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", ""),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "drone.alerts"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "drone-defense@example.com"),
			To:       getEnv("SMTP_TO", "operator@example.com"),
		},
		MockServer: MockServerConfig{
			Port:          getEnvAsInt("MOCK_PORT", 8000),
			FleetTick:     getEnvAsDuration("FLEET_TICK", time.Second),
			HistoryLimit:  getEnvAsInt("SIGHTING_HISTORY_LIMIT", 10000),
			ReportTopSize: getEnvAsInt("REPORT_TOP_OFFENDERS", 5),
		},
		Monitor: MonitorConfig{
			Port:              getEnvAsInt("MONITOR_PORT", 8080),
			SourceURL:         getEnv("SOURCE_URL", "http://localhost:8000"),
			PollInterval:      getEnvAsDuration("POLL_INTERVAL", 2*time.Second),
			PollTimeout:       getEnvAsDuration("POLL_TIMEOUT", 5*time.Second),
			ClearAbsentDrones: getEnvAsBool("CLEAR_ABSENT_DRONES", false),
			ForwardBuffer:     getEnvAsInt("ALERT_FORWARD_BUFFER", 256),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if config.Monitor.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", config.Monitor.PollInterval)
	}
	if config.MockServer.FleetTick <= 0 {
		return nil, fmt.Errorf("FLEET_TICK must be positive, got %s", config.MockServer.FleetTick)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
