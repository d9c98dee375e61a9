package oauth2

// GrantType represents the OAuth 2.0 grant type presented at the token endpoint.
// Determines which credentials are required and how the request is resolved.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Standard Authorization Code Flow
	// Token request includes: code, client_id, client_secret, redirect_uri, code_verifier (if PKCE)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Used in: Token refresh flow (no user interaction)
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Used in: Backend service authentication (no user context)
	// Token request includes: client_id, client_secret, scope
	ClientCredentialsGrant GrantType = "client_credentials"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	// Used in: First-party legacy clients only
	// Token request includes: username, password, client_id, scope
	PasswordGrant GrantType = "password"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypeNone (labeled "plain") means no hashing, code_verifier sent directly.
	CodeMethodTypeNone CodeMethodType = "plain"
)

// OAuth 2.0 error codes returned by the token endpoint (RFC 6749 §5.2).
const (
	// ErrorInvalidRequest indicates a malformed or missing required parameter.
	ErrorInvalidRequest = "invalid_request"

	// ErrorInvalidClient indicates client authentication failed.
	ErrorInvalidClient = "invalid_client"

	// ErrorInvalidGrant indicates the presented code, refresh token or verifier
	// is invalid, expired, mismatched or over-scoped.
	ErrorInvalidGrant = "invalid_grant"

	// ErrorUnsupportedGrantType indicates the grant type is not recognised or
	// not enabled on this server.
	ErrorUnsupportedGrantType = "unsupported_grant_type"

	// ErrorServerError indicates an internal invariant violation, such as a
	// ticket issued without presenters.
	ErrorServerError = "server_error"
)
