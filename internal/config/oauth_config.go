package config

import "time"

type OAuthConfig interface {
	GetAuthorizationEndpointEnabled() bool
	GetAudience() string
	GetAccessTokenExpiry() time.Duration
	GetIDTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetAuthorizationEndpointEnabled reports whether the server redeems
// authorization codes. Servers that only serve machine-to-machine grants run
// with this disabled.
func (OAuth) GetAuthorizationEndpointEnabled() bool {
	return GetEnv("AUTHORIZATION_ENDPOINT_ENABLED", "true") == "true"
}

func (OAuth) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "")
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return durationEnv("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (OAuth) GetIDTokenExpiry() time.Duration {
	return durationEnv("ID_TOKEN_EXPIRY", time.Hour)
}

func (OAuth) GetRefreshTokenExpiry() time.Duration {
	return durationEnv("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
