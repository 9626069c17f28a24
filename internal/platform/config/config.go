package config

import (
	"os"
	"strconv"
	"time"

	"tradegate/pkg/platform/strings"
)

// Config is the process configuration. Empty Redis, database or Kafka
// settings select the in-memory implementations.
type Config struct {
	Server   Server
	Logging  Logging
	Fees     Fees
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	JWTSigningKey   string
	JWTIssuer       string
	ShutdownTimeout time.Duration

	// PaymentCallbackSecret is shared with the payment collaborator only.
	PaymentCallbackSecret string
}

// Logging selects the slog handler and optional rotated file output.
type Logging struct {
	Level  string
	Format string
	File   string
}

// Fees points at the stamp-rate table. Empty uses the built-in schedule.
type Fees struct {
	ScheduleFile string
}

// RedisConfig configures the session store and authorization ledger.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	SessionTTL       time.Duration
	AuthorizationTTL time.Duration
}

// PostgresConfig configures the audit store.
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// KafkaConfig configures the domain event producer.
type KafkaConfig struct {
	Brokers              []string
	ClientID             string
	SessionCompleteTopic string
	OrderAuthorizedTopic string
	AuditTopic           string
	Partitions           int32
	ReplicationFactor    int16
	OutboxPollInterval   time.Duration
}

// IsProduction reports whether the service runs in production.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:            envOr("TRADEGATE_ADDR", ":8080"),
			Environment:     envOr("ENVIRONMENT", "development"),
			JWTSigningKey:   jwtSigningKey,
			JWTIssuer:       os.Getenv("JWT_ISSUER"),
			ShutdownTimeout: durationOr("SHUTDOWN_TIMEOUT", 10*time.Second),

			PaymentCallbackSecret: os.Getenv("PAYMENT_CALLBACK_SECRET"),
		},
		Logging: Logging{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
		Fees: Fees{
			ScheduleFile: os.Getenv("FEE_SCHEDULE_FILE"),
		},
		Redis: RedisConfig{
			URL:              os.Getenv("REDIS_URL"),
			PoolSize:         intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns:     intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:      durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:      durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:     durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SessionTTL:       durationOr("VERIFICATION_SESSION_TTL", 30*24*time.Hour),
			AuthorizationTTL: durationOr("AUTHORIZATION_TTL", 24*time.Hour),
		},
		Postgres: PostgresConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(intOr("DATABASE_MAX_CONNS", 10)),
		},
		Kafka: KafkaConfig{
			Brokers:              strings.SplitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:             envOr("KAFKA_CLIENT_ID", "tradegate"),
			SessionCompleteTopic: envOr("KAFKA_TOPIC_SESSION_COMPLETE", "tradegate.verification.completed"),
			OrderAuthorizedTopic: envOr("KAFKA_TOPIC_ORDER_AUTHORIZED", "tradegate.checkout.authorized"),
			AuditTopic:           envOr("KAFKA_TOPIC_AUDIT", "tradegate.audit"),
			Partitions:           int32(intOr("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor:    int16(intOr("KAFKA_TOPIC_REPLICATION", 1)),
			OutboxPollInterval:   durationOr("OUTBOX_POLL_INTERVAL", time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
