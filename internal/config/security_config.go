package config

type SecurityConfig interface {
	GetSigningSecret() string
	GetSigningKeyPEM() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSigningSecret returns the HMAC secret used when no RSA key is
// configured. Development only; production deployments should set
// SIGNING_KEY_PEM instead.
func (Security) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}

// GetSigningKeyPEM returns the PEM-encoded RSA private key used for RS256
// signing. When set it takes precedence over the HMAC secret.
func (Security) GetSigningKeyPEM() string {
	return GetEnv("SIGNING_KEY_PEM", "")
}
