package config

// EnvPrefix is intentionally empty: every field carries its complete
// LODGETIX_-prefixed variable name in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "LODGETIX_APP_ENV"
	EnvPort     = "LODGETIX_APP_PORT"
	EnvRedisURL = "LODGETIX_REDIS_URL"

	EnvDBDSN  = "LODGETIX_DB_DSN"
	EnvDBHost = "LODGETIX_DB_HOST"
	EnvDBUser = "LODGETIX_DB_USER"
	EnvDBName = "LODGETIX_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
