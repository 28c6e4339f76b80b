package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	OutboxSinkPubSub = "pubsub"
	OutboxSinkKafka  = "kafka"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBPort = "STOREFRONT_DB_PORT"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBPass = "STOREFRONT_DB_PASSWORD"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"

	EnvCartCookieTTL    = "STOREFRONT_CART_COOKIE_TTL"
	EnvCheckoutFreight  = "STOREFRONT_CHECKOUT_FREIGHT"
	EnvOrdersUnpaidTTL  = "STOREFRONT_ORDERS_UNPAID_TTL"
	EnvOutboxSink       = "STOREFRONT_OUTBOX_SINK"
	EnvKafkaBrokers     = "STOREFRONT_KAFKA_BROKERS"
	EnvPubSubOrderTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
