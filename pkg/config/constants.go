package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "COOPMARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "COOPMARKET_DB_DSN"
	EnvDBHost = "COOPMARKET_DB_HOST"
	EnvDBUser = "COOPMARKET_DB_USER"
	EnvDBName = "COOPMARKET_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
