package config

const EnvPrefix = "AUCTION"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"

	BridgeNone  = "none"
	BridgeRedis = "redis"
	BridgeNATS  = "nats"
)

const (
	EnvAppEnv   = "AUCTION_APP_ENV"
	EnvPort     = "AUCTION_APP_PORT"
	EnvLogLevel = "AUCTION_LOG_LEVEL"

	EnvDBDSN    = "AUCTION_DB_DSN"
	EnvDBDriver = "AUCTION_DB_DRIVER"
	EnvDBHost   = "AUCTION_DB_HOST"
	EnvDBPort   = "AUCTION_DB_PORT"
	EnvDBUser   = "AUCTION_DB_USER"
	EnvDBPass   = "AUCTION_DB_PASSWORD"
	EnvDBName   = "AUCTION_DB_NAME"

	EnvRedisURL = "AUCTION_REDIS_URL"

	EnvJWTSecret  = "AUCTION_JWT_SECRET"
	EnvJWTIssuer  = "AUCTION_JWT_ISSUER"
	EnvJWTExpMins = "AUCTION_JWT_EXPIRATION_MINUTES"

	EnvEventingSink = "AUCTION_EVENTING_SINK"

	EnvGCPProjectID = "AUCTION_GCP_PROJECT_ID"

	EnvPubSubAuctionTopic    = "AUCTION_PUBSUB_AUCTION_TOPIC"
	EnvPubSubSettlementTopic = "AUCTION_PUBSUB_SETTLEMENT_TOPIC"
	EnvPubSubAuditSub        = "AUCTION_PUBSUB_AUDIT_SUBSCRIPTION"

	EnvKafkaBrokers = "AUCTION_KAFKA_BROKERS"

	EnvSchedulerInterval = "AUCTION_SCHEDULER_INTERVAL"
	EnvPaymentWindow     = "AUCTION_PAYMENT_WINDOW"

	EnvNotificationsBridge = "AUCTION_NOTIFICATIONS_BRIDGE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
