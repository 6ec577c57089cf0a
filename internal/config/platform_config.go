package config

type PlatformConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetAPIKey() string
	GetRedirectURL() string
	GetProvider() string
	GetProfileRPCURL() string
}

type Platform struct{}

var _ PlatformConfig = Platform{}

// GetIssuerURL is the OIDC issuer of the identity platform (e.g., "https://auth.example.com")
func (Platform) GetIssuerURL() string {
	return GetEnv("AUTH_ISSUER_URL", "http://localhost:9999")
}

func (Platform) GetClientID() string {
	return GetEnv("AUTH_CLIENT_ID", "mobile-app")
}

// GetAPIKey is the public project key sent alongside every platform request
func (Platform) GetAPIKey() string {
	return GetEnv("AUTH_API_KEY", "")
}

func (p Platform) GetRedirectURL() string {
	return GetEnv("AUTH_REDIRECT_URL", "http://"+EnvVars{}.GetCallbackAddr()+"/callback")
}

// GetProvider is the default external identity provider used by sign-in
func (Platform) GetProvider() string {
	return GetEnv("AUTH_PROVIDER", "google")
}

func (Platform) GetProfileRPCURL() string {
	return GetEnv("PROFILE_RPC_URL", "http://localhost:3000")
}
