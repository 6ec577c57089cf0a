package config

import (
	"os"
	"path/filepath"
)

const (
	appNameVar       = "APP_NAME"
	envVar           = "ENV"
	logLevelVar      = "LOG_LEVEL"
	sessionFileVar   = "SESSION_FILE"
	sessionSecretVar = "SESSION_SECRET"
	callbackAddrVar  = "CALLBACK_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Auth Client")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetSessionFile is where the encrypted session cache lives between runs.
func (EnvVars) GetSessionFile() string {
	if file := os.Getenv(sessionFileVar); file != "" {
		return file
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./session.bin"
	}
	return filepath.Join(dir, "go-auth-client", "session.bin")
}

// GetSessionSecret is the input key material for the session cache encryption.
// An empty value disables persistence.
func (EnvVars) GetSessionSecret() string {
	return GetEnv(sessionSecretVar, "")
}

// GetCallbackAddr is the loopback address the sign-in redirect lands on.
func (EnvVars) GetCallbackAddr() string {
	return GetEnv(callbackAddrVar, "127.0.0.1:53682")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
