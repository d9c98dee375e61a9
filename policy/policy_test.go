package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oakgrove/go-token-server/clients"
	fakeclientrepo "github.com/oakgrove/go-token-server/clients/fakerepo"
	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/policy"
	"github.com/oakgrove/go-token-server/users"
	fakeuserrepo "github.com/oakgrove/go-token-server/users/repofake"
)

const (
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
	testUsername     = "john.doe"
	testPassword     = "password123"
)

type policyFixture struct {
	clientRepo clients.Repo
	userRepo   users.UserRepo
	hooks      *policy.Hooks
}

func setupPolicy(t *testing.T) *policyFixture {
	t.Helper()

	cr := fakeclientrepo.NewFakeClientRepo()
	ur := fakeuserrepo.NewFakeUserRepo()

	return &policyFixture{
		clientRepo: cr,
		userRepo:   ur,
		hooks:      policy.New(cr, ur),
	}
}

func (f *policyFixture) createConfidentialClient(t *testing.T, scopes ...string) {
	t.Helper()

	secretHash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)
	require.NoError(t, f.clientRepo.Upsert(&clients.Client{
		ID:         testClientID,
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
		Scopes:     scopes,
	}))
}

func (f *policyFixture) createPublicClient(t *testing.T, scopes ...string) {
	t.Helper()
	require.NoError(t, f.clientRepo.Upsert(&clients.Client{
		ID:     "public-client-1",
		Type:   clients.ClientTypePublic,
		Scopes: scopes,
	}))
}

func (f *policyFixture) createUser(t *testing.T, verified bool) {
	t.Helper()

	passwordHash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(&users.User{
		ID:           "user-1",
		Username:     testUsername,
		PasswordHash: passwordHash,
		Verified:     verified,
	}))
}

func validate(f *policyFixture, tr *oauth2.TokenRequest) exchange.Outcome {
	return f.hooks.ValidateTokenRequest(context.Background(), &exchange.ValidateContext{Request: tr, Options: &exchange.Options{}})
}

func handle(f *policyFixture, tr *oauth2.TokenRequest) (*exchange.HandleContext, exchange.Outcome) {
	hc := &exchange.HandleContext{Request: tr, Options: &exchange.Options{}}
	return hc, f.hooks.HandleTokenRequest(context.Background(), hc)
}

func TestValidate_ConfidentialClientAuthenticates(t *testing.T) {
	f := setupPolicy(t)
	f.createConfidentialClient(t, "api")

	tr := &oauth2.TokenRequest{
		GrantType:    oauth2.ClientCredentialsGrant,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scope:        "api",
	}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Continue(), outcome)
	require.True(t, tr.IsConfidential)
}

func TestValidate_WrongSecretRejected(t *testing.T) {
	f := setupPolicy(t)
	f.createConfidentialClient(t, "api")

	tr := &oauth2.TokenRequest{
		GrantType:    oauth2.ClientCredentialsGrant,
		ClientID:     testClientID,
		ClientSecret: "wrong",
	}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidClient, "The specified client credentials are invalid."), outcome)
	require.False(t, tr.IsConfidential)
}

func TestValidate_UnknownClientRejected(t *testing.T) {
	f := setupPolicy(t)

	tr := &oauth2.TokenRequest{GrantType: oauth2.ClientCredentialsGrant, ClientID: "nobody"}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidClient, "The specified client credentials are invalid."), outcome)
}

func TestValidate_MissingClientIDRejected(t *testing.T) {
	f := setupPolicy(t)

	outcome := validate(f, &oauth2.TokenRequest{GrantType: oauth2.AuthorizationCodeGrant})

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidClient, "The mandatory 'client_id' parameter was missing."), outcome)
}

func TestValidate_PublicClientNotConfidential(t *testing.T) {
	f := setupPolicy(t)
	f.createPublicClient(t, "api")

	tr := &oauth2.TokenRequest{
		GrantType: oauth2.AuthorizationCodeGrant,
		ClientID:  "public-client-1",
		Scope:     "api",
	}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Continue(), outcome)
	require.False(t, tr.IsConfidential)
}

func TestValidate_ScopeOutsideRegistrationRejected(t *testing.T) {
	f := setupPolicy(t)
	f.createConfidentialClient(t, "api")

	tr := &oauth2.TokenRequest{
		GrantType:    oauth2.ClientCredentialsGrant,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scope:        "api admin",
	}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidRequest, "The specified 'scope' parameter is not valid for this client."), outcome)
}

func TestValidate_RefreshScopeLeftToGrantCheck(t *testing.T) {
	// Refresh scopes are narrowed against the original grant, not the
	// client registration.
	f := setupPolicy(t)
	f.createConfidentialClient(t) // no registered scopes

	tr := &oauth2.TokenRequest{
		GrantType:    oauth2.RefreshTokenGrant,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scope:        "api",
	}
	outcome := validate(f, tr)

	require.Equal(t, exchange.Continue(), outcome)
}

func TestHandle_ClientCredentialsBuildsTicket(t *testing.T) {
	f := setupPolicy(t)

	tr := &oauth2.TokenRequest{
		GrantType:      oauth2.ClientCredentialsGrant,
		ClientID:       testClientID,
		IsConfidential: true,
		Scope:          "api",
	}
	hc, outcome := handle(f, tr)

	require.Equal(t, exchange.Continue(), outcome)
	require.NotNil(t, hc.Ticket)
	require.Equal(t, testClientID, hc.Ticket.Subject)
	require.Equal(t, []string{testClientID}, hc.Ticket.Presenters)
	require.Equal(t, []string{"api"}, hc.Ticket.Scopes)
	require.True(t, hc.Ticket.Confidential)
	require.Nil(t, hc.Ticket.ExpiresAt) // issuance assigns the lifetime
}

func TestHandle_ClientCredentialsRequiresAuthentication(t *testing.T) {
	f := setupPolicy(t)

	tr := &oauth2.TokenRequest{GrantType: oauth2.ClientCredentialsGrant, ClientID: testClientID}
	hc, outcome := handle(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidClient, "Client authentication is required for the client credentials grant."), outcome)
	require.Nil(t, hc.Ticket)
}

func TestHandle_PasswordGrantBuildsTicket(t *testing.T) {
	f := setupPolicy(t)
	f.createUser(t, true)

	tr := &oauth2.TokenRequest{
		GrantType: oauth2.PasswordGrant,
		ClientID:  testClientID,
		Username:  testUsername,
		Password:  testPassword,
		Scope:     "openid",
	}
	hc, outcome := handle(f, tr)

	require.Equal(t, exchange.Continue(), outcome)
	require.NotNil(t, hc.Ticket)
	require.Equal(t, "user-1", hc.Ticket.Subject)
	require.Equal(t, []string{testClientID}, hc.Ticket.Presenters)
}

func TestHandle_PasswordGrantWrongPassword(t *testing.T) {
	f := setupPolicy(t)
	f.createUser(t, true)

	tr := &oauth2.TokenRequest{
		GrantType: oauth2.PasswordGrant,
		ClientID:  testClientID,
		Username:  testUsername,
		Password:  "wrong",
	}
	_, outcome := handle(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidGrant, "The specified resource owner credentials are invalid."), outcome)
}

func TestHandle_PasswordGrantUnverifiedUser(t *testing.T) {
	f := setupPolicy(t)
	f.createUser(t, false)

	tr := &oauth2.TokenRequest{
		GrantType: oauth2.PasswordGrant,
		ClientID:  testClientID,
		Username:  testUsername,
		Password:  testPassword,
	}
	_, outcome := handle(f, tr)

	require.Equal(t, exchange.Reject(oauth2.ErrorInvalidGrant, "The specified resource owner account is not active."), outcome)
}

func TestHandle_PasswordGrantWithoutUserRepo(t *testing.T) {
	cr := fakeclientrepo.NewFakeClientRepo()
	hooks := policy.New(cr, nil)

	hc := &exchange.HandleContext{
		Request: &oauth2.TokenRequest{GrantType: oauth2.PasswordGrant, Username: testUsername, Password: testPassword},
		Options: &exchange.Options{},
	}
	outcome := hooks.HandleTokenRequest(context.Background(), hc)

	require.Equal(t, exchange.Reject(oauth2.ErrorUnsupportedGrantType, "The resource owner password grant is not supported by this server."), outcome)
}

func TestHandle_ResolvedGrantsUntouched(t *testing.T) {
	f := setupPolicy(t)

	hc := &exchange.HandleContext{
		Request: &oauth2.TokenRequest{GrantType: oauth2.AuthorizationCodeGrant},
		Options: &exchange.Options{},
	}
	outcome := f.hooks.HandleTokenRequest(context.Background(), hc)

	require.Equal(t, exchange.Continue(), outcome)
	require.Nil(t, hc.Ticket)
}
