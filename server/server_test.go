package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/oakgrove/go-token-server/clients"
	fakeclientrepo "github.com/oakgrove/go-token-server/clients/fakerepo"
	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/internal/config"
	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/policy"
	"github.com/oakgrove/go-token-server/server"
	"github.com/oakgrove/go-token-server/ticket"
	"github.com/oakgrove/go-token-server/ticket/memstore"
	"github.com/oakgrove/go-token-server/token"
	"github.com/oakgrove/go-token-server/users"
	fakeuserrepo "github.com/oakgrove/go-token-server/users/repofake"
)

const (
	testIssuerURL        = "https://auth.example.com"
	confidentialClientID = "backend-client"
	confidentialSecret   = "backend-secret"
	publicClientID       = "spa-client"
	testRedirectURI      = "http://localhost:3000/callback"
	testCodeVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testUsername         = "john.doe"
	testPassword         = "password123"
)

type serverFixture struct {
	ts    *httptest.Server
	store *memstore.Store
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	keyPair, err := token.GenerateRSAKeyPair("e2e-key", 2048)
	require.NoError(t, err)

	store := memstore.New()
	issuer, err := token.New(store, token.NewKeyPairSigner(keyPair), testIssuerURL)
	require.NoError(t, err)

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	secretHash, err := clients.HashSecret(confidentialSecret)
	require.NoError(t, err)
	require.NoError(t, clientRepo.Upsert(&clients.Client{
		ID:         confidentialClientID,
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
		Scopes:     []string{"openid", "api"},
	}))
	require.NoError(t, clientRepo.Upsert(&clients.Client{
		ID:           publicClientID,
		Type:         clients.ClientTypePublic,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "api"},
	}))

	userRepo := fakeuserrepo.NewFakeUserRepo()
	passwordHash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, userRepo.Upsert(&users.User{
		ID:           "user-1",
		Username:     testUsername,
		PasswordHash: passwordHash,
		Verified:     true,
	}))

	hooks := policy.New(clientRepo, userRepo)
	exchangeService, err := exchange.NewService(store, issuer,
		exchange.Options{AuthorizationEndpointEnabled: true},
		exchange.WithHooks(hooks))
	require.NoError(t, err)

	srv, err := server.New(config.New(), exchangeService, issuer)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &serverFixture{ts: ts, store: store}
}

func (f *serverFixture) tokenURL() string {
	return f.ts.URL + server.RouteOAuth2Token
}

// seedAuthorizationCode stores a code ticket the way the authorization
// endpoint would have, with the redirect echo and PKCE challenge pinned.
func (f *serverFixture) seedAuthorizationCode(t *testing.T, handle string) {
	t.Helper()

	expires := time.Now().Add(5 * time.Minute)
	tk := &ticket.Ticket{
		Subject:    "user-1",
		Presenters: []string{publicClientID},
		Scopes:     []string{"openid", "api"},
		ExpiresAt:  &expires,
	}
	tk.SetProperty(ticket.PropertyRedirectURI, testRedirectURI)
	tk.SetProperty(ticket.PropertyCodeChallenge, oauth2.S256Challenge(testCodeVerifier))
	tk.SetProperty(ticket.PropertyCodeChallengeMethod, "S256")
	require.NoError(t, f.store.SaveAuthorizationCode(context.Background(), handle, tk))
}

func TestE2E_ClientCredentials(t *testing.T) {
	f := setupServer(t)

	cfg := clientcredentials.Config{
		ClientID:     confidentialClientID,
		ClientSecret: confidentialSecret,
		TokenURL:     f.tokenURL(),
		Scopes:       []string{"api"},
	}
	tok, err := cfg.Token(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.True(t, tok.Valid())
	require.Empty(t, tok.RefreshToken)
}

func TestE2E_ClientCredentials_WrongSecret(t *testing.T) {
	f := setupServer(t)

	cfg := clientcredentials.Config{
		ClientID:     confidentialClientID,
		ClientSecret: "wrong",
		TokenURL:     f.tokenURL(),
	}
	_, err := cfg.Token(context.Background())
	require.Error(t, err)

	var retrieveErr *xoauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	require.Equal(t, http.StatusUnauthorized, retrieveErr.Response.StatusCode)
}

func TestE2E_AuthorizationCodeWithPKCE(t *testing.T) {
	f := setupServer(t)
	f.seedAuthorizationCode(t, "code-1")

	cfg := xoauth2.Config{
		ClientID:    publicClientID,
		RedirectURL: testRedirectURI,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  f.tokenURL(),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}
	tok, err := cfg.Exchange(context.Background(), "code-1",
		xoauth2.SetAuthURLParam("code_verifier", testCodeVerifier))
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.RefreshToken)
	require.NotEmpty(t, tok.Extra("id_token"))

	// The code is single use.
	_, err = cfg.Exchange(context.Background(), "code-1",
		xoauth2.SetAuthURLParam("code_verifier", testCodeVerifier))
	require.Error(t, err)
}

func TestE2E_AuthorizationCode_WrongVerifier(t *testing.T) {
	f := setupServer(t)
	f.seedAuthorizationCode(t, "code-1")

	cfg := xoauth2.Config{
		ClientID:    publicClientID,
		RedirectURL: testRedirectURI,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  f.tokenURL(),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}
	_, err := cfg.Exchange(context.Background(), "code-1",
		xoauth2.SetAuthURLParam("code_verifier", "not-the-verifier-but-still-43-characters-long"))
	require.Error(t, err)

	var retrieveErr *xoauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	require.Equal(t, http.StatusBadRequest, retrieveErr.Response.StatusCode)
}

func TestE2E_RefreshTokenRotation(t *testing.T) {
	f := setupServer(t)
	f.seedAuthorizationCode(t, "code-1")

	cfg := xoauth2.Config{
		ClientID:    publicClientID,
		RedirectURL: testRedirectURI,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  f.tokenURL(),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}
	ctx := context.Background()
	tok, err := cfg.Exchange(ctx, "code-1",
		xoauth2.SetAuthURLParam("code_verifier", testCodeVerifier))
	require.NoError(t, err)

	// Hand the source an expired token so it redeems the refresh token.
	stale := &xoauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	refreshed, err := cfg.TokenSource(ctx, stale).Token()
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

	// The presented handle was retired by the rotation.
	_, err = cfg.TokenSource(ctx, stale).Token()
	require.Error(t, err)
}

func TestE2E_PasswordGrant(t *testing.T) {
	f := setupServer(t)

	cfg := xoauth2.Config{
		ClientID:     confidentialClientID,
		ClientSecret: confidentialSecret,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  f.tokenURL(),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
		Scopes: []string{"api"},
	}
	tok, err := cfg.PasswordCredentialsToken(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)

	_, err = cfg.PasswordCredentialsToken(context.Background(), testUsername, "wrong")
	require.Error(t, err)
}

func TestE2E_UnsupportedContentType(t *testing.T) {
	f := setupServer(t)

	resp, err := http.Post(f.tokenURL(), "text/plain", strings.NewReader("grant_type=password"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body oauth2.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, oauth2.ErrorInvalidRequest, body.Error)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestE2E_DiscoveryDocument(t *testing.T) {
	f := setupServer(t)

	resp, err := http.Get(f.ts.URL + server.RouteWellKnownOpenIDConfig)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Issuer              string   `json:"issuer"`
		TokenEndpoint       string   `json:"token_endpoint"`
		JWKSURI             string   `json:"jwks_uri"`
		GrantTypesSupported []string `json:"grant_types_supported"`
		CodeMethods         []string `json:"code_challenge_methods_supported"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.NotEmpty(t, doc.Issuer)
	require.True(t, strings.HasSuffix(doc.TokenEndpoint, server.RouteOAuth2Token))
	require.True(t, strings.HasSuffix(doc.JWKSURI, server.RouteWellKnownJWKS))
	require.Contains(t, doc.GrantTypesSupported, "authorization_code")
	require.Contains(t, doc.CodeMethods, "S256")
}

func TestE2E_JWKS(t *testing.T) {
	f := setupServer(t)

	resp, err := http.Get(f.ts.URL + server.RouteWellKnownJWKS)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks token.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.Equal(t, "e2e-key", jwks.Keys[0].Kid)
}

func TestE2E_OperationalRoutes(t *testing.T) {
	f := setupServer(t)

	resp, err := http.Get(f.ts.URL + server.RouteHealth)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.ts.URL + server.RouteMetrics)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
