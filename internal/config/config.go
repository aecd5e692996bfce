package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
}

type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
	QueryTimeoutSec int    `envconfig:"CLICKHOUSE_QUERY_TIMEOUT_SEC" default:"60"`
}

type Valkey struct {
	Host string `envconfig:"VALKEY_HOST" default:"localhost"`
	Port string `envconfig:"VALKEY_PORT" default:"6379"`
	DB   int    `envconfig:"VALKEY_DB" default:"0"`
}

type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL"`
	Region   string `envconfig:"SQS_REGION" default:"eu-central-1"`
}

type Consumer struct {
	BatchSizeMax    int    `envconfig:"CONSUMER_BATCH_SIZE_MAX" default:"2000"`
	BatchTimeoutSec int    `envconfig:"CONSUMER_BATCH_TIMEOUT_SEC" default:"10"`
	HealthCheckPort string `envconfig:"CONSUMER_HEALTH_CHECK_PORT" default:"8081"`
}

type Pipeline struct {
	ChunkSize          int `envconfig:"PIPELINE_CHUNK_SIZE" default:"10000"`
	MaxRetries         int `envconfig:"PIPELINE_MAX_RETRIES" default:"3"`
	RetryDelaySec      int `envconfig:"PIPELINE_RETRY_DELAY_SEC" default:"2"`
	BatchDelayMs       int `envconfig:"PIPELINE_BATCH_DELAY_MS" default:"0"`
	ResumeTTLHours     int `envconfig:"PIPELINE_RESUME_TTL_HOURS" default:"168"`
	BreakerThreshold   int `envconfig:"PIPELINE_BREAKER_THRESHOLD" default:"5"`
	BreakerCooldownSec int `envconfig:"PIPELINE_BREAKER_COOLDOWN_SEC" default:"60"`
}

type Config struct {
	Service    Service
	ClickHouse ClickHouse
	Valkey     Valkey
	SQS        SQS
	Consumer   Consumer
	Pipeline   Pipeline
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
