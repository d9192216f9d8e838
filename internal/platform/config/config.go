package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "hemalink/pkg/platform/strings"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config captures process level configuration.
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string
	Seed      bool

	Storage StorageConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
}

// StorageConfig selects and tunes the record store backend.
type StorageConfig struct {
	Backend      string
	DatabaseURL  string
	ProbeTimeout time.Duration
	TxTimeout    time.Duration
}

// RedisConfig tunes the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables notification publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:      envOr("HEMALINK_ADDR", ":8080"),
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
		Seed:      os.Getenv("SEED_SAMPLE_DATA") == "true",
		Storage: StorageConfig{
			Backend:      strings.ToLower(envOr("STORE_BACKEND", BackendMemory)),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			ProbeTimeout: durationOr("STORE_PROBE_TIMEOUT", 3*time.Second),
			TxTimeout:    durationOr("STORE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("NOTIFICATIONS_TOPIC", "hemalink.notifications"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
