package config

type Config interface {
	EnvConfig
	SessionConfig
	CookieConfig
	OIDCConfig
	StoreConfig
	SecurityConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	SessionVars
	CookieVars
	OIDCVars
	StoreVars
	Security
	Cors
}

func New() Config {
	return mainConfig{}
}
