package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "northstar/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr         string
	LogLevel     string
	RegistryPath string
	SinkBuffer   int

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// PostgresConfig configures the durable entry archive. An empty DSN disables
// the archive sink.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the live entry stream. An empty URL disables it.
type RedisConfig struct {
	URL          string
	Stream       string
	StreamMaxLen int64
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the Kafka entry feed. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:         envOr("NORTHSTAR_ADDR", ":8080"),
		LogLevel:     envOr("NORTHSTAR_LOG_LEVEL", "info"),
		RegistryPath: envOr("NORTHSTAR_REGISTRY_PATH", "data/phase_ledger.jsonl"),
		SinkBuffer:   envIntOr("NORTHSTAR_SINK_BUFFER", 1024),
		Postgres: PostgresConfig{
			DSN: os.Getenv("NORTHSTAR_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("NORTHSTAR_REDIS_URL"),
			Stream:       envOr("NORTHSTAR_REDIS_STREAM", "northstar:entries"),
			StreamMaxLen: int64(envIntOr("NORTHSTAR_REDIS_STREAM_MAXLEN", 100000)),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("NORTHSTAR_KAFKA_BROKERS")),
			Topic:      envOr("NORTHSTAR_KAFKA_TOPIC", "northstar.ledger.entries"),
			Partitions: int32(envIntOr("NORTHSTAR_KAFKA_PARTITIONS", 3)),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
