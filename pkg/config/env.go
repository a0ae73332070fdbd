package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "trendora"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TRENDORA_DB_DSN"
	EnvDBHost = "TRENDORA_DB_HOST"
	EnvDBUser = "TRENDORA_DB_USER"
	EnvDBName = "TRENDORA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
