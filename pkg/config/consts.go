package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "WISHBEE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WISHBEE_DB_DSN"
	EnvDBHost = "WISHBEE_DB_HOST"
	EnvDBUser = "WISHBEE_DB_USER"
	EnvDBName = "WISHBEE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
