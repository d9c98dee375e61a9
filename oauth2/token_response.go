package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format defined in RFC 6749:
// either the token fields or the error fields are populated, never both.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity claims.
	// Only present when the "openid" scope was granted.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer" here).
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Security: Should be stored securely, rotates on each use
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions,
	// space-separated. May be less than requested.
	Scope string `json:"scope,omitempty"`

	// Error carries the OAuth2 error code on failure (RFC 6749 §5.2).
	Error string `json:"error,omitempty"`

	// ErrorDescription is a human-readable explanation of the failure.
	ErrorDescription string `json:"error_description,omitempty"`

	// ErrorURI optionally points at documentation for the failure.
	ErrorURI string `json:"error_uri,omitempty"`
}

// NewErrorResponse builds an error-shaped token response.
func NewErrorResponse(code, description, uri string) *TokenResponse {
	return &TokenResponse{
		Error:            code,
		ErrorDescription: description,
		ErrorURI:         uri,
	}
}

// IsError returns true if the response carries an OAuth2 error code.
func (r *TokenResponse) IsError() bool {
	return r.Error != ""
}
