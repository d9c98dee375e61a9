package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/internal/metrics"
	"github.com/oakgrove/go-token-server/oauth2"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Token exchanges codes, refresh tokens or credentials for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(metrics.TokenRequestDuration)
		defer timer.ObserveDuration()

		// Parse token request from form data
		if err := r.ParseForm(); err != nil {
			writeTokenResponse(w, "", oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
				"The request form could not be parsed.", ""))
			return
		}

		req := &exchange.Request{
			Method:        r.Method,
			ContentType:   r.Header.Get("Content-Type"),
			Authorization: r.Header.Get("Authorization"),
			Form:          r.PostForm,
		}
		responder := &httpResponder{w: w, grantType: req.Form.Get("grant_type")}

		handled, err := s.exchange.HandleTokenRequest(r.Context(), req, responder)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to write token response")
			return
		}
		if !handled {
			// A hook skipped the request; nothing else serves this route.
			http.NotFound(w, r)
		}
	}
}

// httpResponder adapts an http.ResponseWriter to the exchange pipeline's
// single response write.
type httpResponder struct {
	w         http.ResponseWriter
	grantType string
}

func (hr *httpResponder) WriteResponse(_ context.Context, response *oauth2.TokenResponse) error {
	return writeTokenResponse(hr.w, hr.grantType, response)
}

func writeTokenResponse(w http.ResponseWriter, grantType string, response *oauth2.TokenResponse) error {
	status := http.StatusOK
	outcome := "success"
	if response.IsError() {
		outcome = response.Error
		switch response.Error {
		case oauth2.ErrorInvalidClient:
			status = http.StatusUnauthorized
			w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		case oauth2.ErrorServerError:
			status = http.StatusInternalServerError
		default:
			status = http.StatusBadRequest
		}
	}
	metrics.TokenRequests.WithLabelValues(grantType, outcome).Inc()

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(response)
}

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":         baseURL,
			"token_endpoint": baseURL + RouteOAuth2Token,
			"jwks_uri":       baseURL + RouteWellKnownJWKS,

			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256", "HS256"},

			"scopes_supported": []string{
				"openid",
				"offline_access",
			},

			// Token endpoint auth methods
			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic", // Credentials in the Authorization header
				"client_secret_post",  // Credentials in POST body
				"none",                // For public clients with PKCE
			},

			"grant_types_supported": s.grantTypesSupported(),

			// PKCE support
			"code_challenge_methods_supported": []string{"S256", "plain"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) grantTypesSupported() []string {
	grantTypes := []string{
		"refresh_token",
		"client_credentials",
		"password",
	}
	if s.config.GetAuthorizationEndpointEnabled() {
		grantTypes = append([]string{"authorization_code"}, grantTypes...)
	}
	return grantTypes
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.issuer.JWKS()
		if err != nil {
			// Symmetric signing has no public keys to publish.
			http.Error(w, "JWKS not available", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(jwks)
	}
}
