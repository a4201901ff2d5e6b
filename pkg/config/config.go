package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "casematch"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Matching     MatchingConfig
	Sweep        SweepConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CASEMATCH_APP_ENV" required:"true"`
	Port         string `envconfig:"CASEMATCH_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CASEMATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASEMATCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CASEMATCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CASEMATCH_DB_DSN"`
	Driver string `envconfig:"CASEMATCH_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CASEMATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CASEMATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CASEMATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASEMATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) validate() error {
	if d.Driver == "sqlite" {
		return nil
	}
	if d.DSN == "" {
		return fmt.Errorf("database DSN is required for driver %q", d.Driver)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CASEMATCH_REDIS_URL"`
	Address      string        `envconfig:"CASEMATCH_REDIS_ADDR"`
	Password     string        `envconfig:"CASEMATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASEMATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASEMATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASEMATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASEMATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASEMATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASEMATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
	SnapshotTTL  time.Duration `envconfig:"CASEMATCH_REDIS_SNAPSHOT_TTL" default:"30s"`
}

// MatchingConfig carries the scalar thresholds recognized by the engine.
// Scoring weights are compile-time constants; only thresholds are tunable.
type MatchingConfig struct {
	MinimumScoreThreshold    float64 `envconfig:"CASEMATCH_MATCHING_MIN_SCORE" default:"35.0"`
	WorkloadPenaltyThreshold float64 `envconfig:"CASEMATCH_MATCHING_WORKLOAD_PENALTY_THRESHOLD" default:"80.0"`
	EmergencyOverrideEnabled bool    `envconfig:"CASEMATCH_MATCHING_EMERGENCY_OVERRIDE" default:"true"`
	SnapshotLimit            int     `envconfig:"CASEMATCH_MATCHING_SNAPSHOT_LIMIT" default:"50"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"CASEMATCH_SWEEP_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"CASEMATCH_SWEEP_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CASEMATCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CASEMATCH_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CASEMATCH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CASEMATCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CASEMATCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AssignmentTopic       string `envconfig:"CASEMATCH_PUBSUB_ASSIGNMENT_TOPIC" default:"assignment-events"`
	CaseTopic             string `envconfig:"CASEMATCH_PUBSUB_CASE_TOPIC" default:"case-events"`
	AnalyticsSubscription string `envconfig:"CASEMATCH_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"assignment-events-analytics"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CASEMATCH_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"CASEMATCH_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"CASEMATCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CASEMATCH_OUTBOX_RETENTION" default:"720h"`
	IdempotencyTTL time.Duration `envconfig:"CASEMATCH_OUTBOX_IDEMPOTENCY_TTL" default:"168h"`
}

type BigQueryConfig struct {
	Dataset               string `envconfig:"CASEMATCH_BIGQUERY_DATASET"`
	AssignmentEventsTable string `envconfig:"CASEMATCH_BIGQUERY_ASSIGNMENT_EVENTS_TABLE" default:"assignment_events"`
}
