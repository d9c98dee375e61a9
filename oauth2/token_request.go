package oauth2

// TokenRequest holds the normalized parameters of an OAuth2 token request.
// This represents the form-encoded body sent to the /token endpoint.
// Supports multiple grant types: authorization_code, refresh_token,
// client_credentials and password.
type TokenRequest struct {
	// GrantType selects the OAuth2 mechanism used to request tokens.
	// Required: Yes (for all requests)
	// Example: "authorization_code"
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// May arrive in the body or inside an HTTP Basic Authorization header.
	// Example: "web-app-client"
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Required: Yes for confidential clients, No for public clients
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (only for authorization_code grant)
	// Usage: Exchanged once for tokens, then becomes invalid
	Code string

	// RefreshToken is used to obtain new access tokens without re-authentication.
	// Required: Yes (only for refresh_token grant)
	// Behavior: Rotated - old refresh token invalidated, new one issued
	RefreshToken string

	// Username and Password are the resource-owner credentials.
	// Required: Yes (only for password grant)
	Username string
	Password string

	// RedirectURI must match the redirect_uri bound to the authorization code
	// when one was supplied during the authorization request.
	RedirectURI string

	// CodeVerifier is the PKCE code verifier that matches the stored code_challenge.
	// Required: Yes (if PKCE was used in the authorization request)
	// Validation: Server compares a digest of code_verifier with the stored challenge
	CodeVerifier string

	// Scope is the space-delimited list of requested scopes.
	// For refresh requests it must not exceed the scopes of the original grant.
	Scope string

	// Resource is the space-delimited list of requested resource indicators.
	// For refresh requests it must not exceed the resources of the original grant.
	Resource string

	// IsConfidential records whether the client proved possession of its
	// credentials during request validation. It is set by the validation
	// stage, never from client input.
	IsConfidential bool
}
