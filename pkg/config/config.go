package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Auctions      AuctionsConfig
	BidRateLimit  BidRateLimitConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AUCTION_APP_ENV" required:"true"`
	Port         string `envconfig:"AUCTION_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AUCTION_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AUCTION_LOG_WARN_STACK" default:"false"`
	// MetricsAddr serves /metrics from background workers when set.
	MetricsAddr string `envconfig:"AUCTION_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

type ServiceConfig struct {
	Kind string `envconfig:"AUCTION_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AUCTION_DB_DSN"`
	Driver string `envconfig:"AUCTION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUCTION_DB_HOST"`
	LegacyPort     int    `envconfig:"AUCTION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUCTION_DB_USER"`
	LegacyPassword string `envconfig:"AUCTION_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUCTION_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUCTION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUCTION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUCTION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUCTION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUCTION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"AUCTION_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AUCTION_REDIS_ADDR"`
	Password     string        `envconfig:"AUCTION_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUCTION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUCTION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUCTION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUCTION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUCTION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUCTION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AUCTION_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AUCTION_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AUCTION_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AUCTION_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"AUCTION_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	Sink                 string        `envconfig:"AUCTION_EVENTING_SINK" default:"pubsub"`
}

// UsesKafka reports whether outbox rows are published to Kafka instead of Pub/Sub.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Sink), SinkKafka)
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Sink)) {
	case SinkPubSub, SinkKafka:
		return nil
	}
	return fmt.Errorf("%s must be one of %s|%s, got %q", EnvEventingSink, SinkPubSub, SinkKafka, e.Sink)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AUCTION_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AUCTION_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AUCTION_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AuctionTopic      string `envconfig:"AUCTION_PUBSUB_AUCTION_TOPIC" default:"auction-events"`
	SettlementTopic   string `envconfig:"AUCTION_PUBSUB_SETTLEMENT_TOPIC" default:"auction-settlements"`
	AuditSubscription string `envconfig:"AUCTION_PUBSUB_AUDIT_SUBSCRIPTION" default:"auction-events-audit"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"AUCTION_KAFKA_BROKERS"`
	MaxAttempts  int           `envconfig:"AUCTION_KAFKA_MAX_ATTEMPTS" default:"3"`
	WriteTimeout time.Duration `envconfig:"AUCTION_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"AUCTION_BIGQUERY_DATASET" default:"auctions"`
	AuctionEventsTable string `envconfig:"AUCTION_BIGQUERY_EVENTS_TABLE" default:"auction_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AUCTION_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AUCTION_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AUCTION_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"AUCTION_OUTBOX_RETENTION_DAYS" default:"30"`
}

type AuctionsConfig struct {
	SchedulerInterval time.Duration `envconfig:"AUCTION_SCHEDULER_INTERVAL" default:"1s"`
	SweepBatchSize    int           `envconfig:"AUCTION_SCHEDULER_BATCH_SIZE" default:"200"`
	PaymentWindow     time.Duration `envconfig:"AUCTION_PAYMENT_WINDOW" default:"48h"`
	SettlementBatch   int           `envconfig:"AUCTION_SETTLEMENT_SWEEP_BATCH_SIZE" default:"100"`
	MaintenanceEvery  time.Duration `envconfig:"AUCTION_MAINTENANCE_INTERVAL" default:"1h"`
}

// BidRateLimitConfig throttles bid submissions. A zero limit disables that counter.
type BidRateLimitConfig struct {
	Window      time.Duration `envconfig:"AUCTION_BID_RATE_WINDOW" default:"10s"`
	IPLimit     int           `envconfig:"AUCTION_BID_RATE_IP_LIMIT" default:"60"`
	BidderLimit int           `envconfig:"AUCTION_BID_RATE_BIDDER_LIMIT" default:"20"`
}

type NotificationsConfig struct {
	Bridge           string `envconfig:"AUCTION_NOTIFICATIONS_BRIDGE" default:"redis"`
	NatsURL          string `envconfig:"AUCTION_NATS_URL" default:"nats://127.0.0.1:4222"`
	HubQueueSize     int    `envconfig:"AUCTION_HUB_QUEUE_SIZE" default:"1024"`
	SubscriberBuffer int    `envconfig:"AUCTION_HUB_SUBSCRIBER_BUFFER" default:"64"`
}

func (n NotificationsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(n.Bridge)) {
	case BridgeNone, BridgeRedis, BridgeNATS:
		return nil
	}
	return fmt.Errorf("%s must be one of %s|%s|%s, got %q", EnvNotificationsBridge, BridgeNone, BridgeRedis, BridgeNATS, n.Bridge)
}

// RequireFanOut rejects the none bridge for processes whose hub has no local
// subscribers; their events would never reach a stream.
func (n NotificationsConfig) RequireFanOut(serviceKind string) error {
	if n.BridgeKind() == BridgeNone {
		return fmt.Errorf("%s=%s drops every event published by %s; use %s or %s",
			EnvNotificationsBridge, BridgeNone, serviceKind, BridgeRedis, BridgeNATS)
	}
	return nil
}

// BridgeKind returns the normalized bridge selector.
func (n NotificationsConfig) BridgeKind() string {
	kind := strings.ToLower(strings.TrimSpace(n.Bridge))
	if kind == "" {
		return BridgeNone
	}
	return kind
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
