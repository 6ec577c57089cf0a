package config

type Config interface {
	EnvConfig
	PlatformConfig
	ProbeConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetSessionFile() string
	GetSessionSecret() string
	GetCallbackAddr() string
}

type mainConfig struct {
	EnvVars
	Platform
	Probe
}

func New() Config {
	return mainConfig{}
}
