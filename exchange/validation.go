package exchange

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/oakgrove/go-token-server/oauth2"
)

// newTokenRequest maps the form-encoded body onto the normalized request
// shape. No validation happens here; the Extract hook sees the raw mapping.
func newTokenRequest(form url.Values) *oauth2.TokenRequest {
	return &oauth2.TokenRequest{
		GrantType:    oauth2.GrantType(form.Get("grant_type")),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		RefreshToken: form.Get("refresh_token"),
		Username:     form.Get("username"),
		Password:     form.Get("password"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		Scope:        form.Get("scope"),
		Resource:     form.Get("resource"),
	}
}

// validateShape performs the structural checks that apply before any grant
// resolution: HTTP method, content type and grant-specific required
// parameters. Returns nil when the request is well formed.
func (s *Service) validateShape(req *Request, tr *oauth2.TokenRequest) *oauth2.TokenResponse {
	if req.Method != http.MethodPost {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
			"The token request must use the HTTP POST method.", "")
	}
	if req.ContentType == "" {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
			"The mandatory 'Content-Type' header was missing.", "")
	}
	if !strings.HasPrefix(strings.ToLower(req.ContentType), "application/x-www-form-urlencoded") {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
			"The specified 'Content-Type' header is not supported.", "")
	}
	if tr.GrantType == "" {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
			"The mandatory 'grant_type' parameter was missing.", "")
	}

	switch tr.GrantType {
	case oauth2.AuthorizationCodeGrant:
		if !s.opts.AuthorizationEndpointEnabled {
			return oauth2.NewErrorResponse(oauth2.ErrorUnsupportedGrantType,
				"The authorization code grant is not supported by this server.", "")
		}
		if tr.Code == "" {
			return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
				"The mandatory 'code' parameter was missing.", "")
		}
	case oauth2.RefreshTokenGrant:
		if tr.RefreshToken == "" {
			return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
				"The mandatory 'refresh_token' parameter was missing.", "")
		}
	case oauth2.PasswordGrant:
		if tr.Username == "" || tr.Password == "" {
			return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
				"The mandatory 'username' and/or 'password' parameters were missing.", "")
		}
	}
	return nil
}

// extractClientCredentials populates the request's client credentials from an
// HTTP Basic Authorization header when the body carried none. A malformed
// header is silently ignored so a client validation hook can decide how to
// treat an unidentified caller.
func extractClientCredentials(tr *oauth2.TokenRequest, authorization string) {
	if tr.ClientID != "" || tr.ClientSecret != "" {
		return
	}
	const prefix = "basic "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authorization[len(prefix):]))
	if err != nil {
		return
	}
	clientID, clientSecret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return
	}
	tr.ClientID = clientID
	tr.ClientSecret = clientSecret
}
