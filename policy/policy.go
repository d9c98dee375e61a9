// Package policy is the server's built-in hook implementation for the token
// exchange pipeline. It authenticates clients during the validation stage and
// claims the client credentials and password grants during the handle stage.
package policy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/oakgrove/go-token-server/clients"
	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/ticket"
	"github.com/oakgrove/go-token-server/users"
)

// Hooks implements exchange.Hooks backed by the client and user registries.
type Hooks struct {
	exchange.NopHooks
	clients clients.Repo
	users   users.UserRepo
	logger  zerolog.Logger
}

// HooksOption modifies the Hooks configuration.
type HooksOption func(*Hooks)

// WithLogger sets the logger used for policy decisions.
func WithLogger(logger zerolog.Logger) HooksOption {
	return func(h *Hooks) {
		h.logger = logger
	}
}

// New creates the default policy hooks. userRepo may be nil, in which case
// the password grant is refused.
func New(clientRepo clients.Repo, userRepo users.UserRepo, options ...HooksOption) *Hooks {
	h := &Hooks{
		clients: clientRepo,
		users:   userRepo,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// ValidateTokenRequest authenticates the requesting client. Confidential
// clients must present their secret; public clients are identified only.
// A successful secret check marks the request confidential.
func (h *Hooks) ValidateTokenRequest(_ context.Context, hc *exchange.ValidateContext) exchange.Outcome {
	tr := hc.Request
	if tr.ClientID == "" {
		return exchange.Reject(oauth2.ErrorInvalidClient,
			"The mandatory 'client_id' parameter was missing.")
	}

	client, err := h.clients.Get(tr.ClientID)
	if err != nil {
		h.logger.Debug().Str("client_id", tr.ClientID).Msg("unknown client")
		return exchange.Reject(oauth2.ErrorInvalidClient,
			"The specified client credentials are invalid.")
	}

	if client.IsPublic() {
		// Public clients have no secret to check. A stray secret is ignored
		// rather than rejected so SDKs that always send one keep working.
		return h.validateScope(client, tr)
	}

	if !client.VerifySecret(tr.ClientSecret) {
		h.logger.Debug().Str("client_id", tr.ClientID).Msg("client secret mismatch")
		return exchange.Reject(oauth2.ErrorInvalidClient,
			"The specified client credentials are invalid.")
	}
	tr.IsConfidential = true

	return h.validateScope(client, tr)
}

func (h *Hooks) validateScope(client *clients.Client, tr *oauth2.TokenRequest) exchange.Outcome {
	// Refresh requests are scoped against the original grant instead.
	if tr.GrantType == oauth2.RefreshTokenGrant {
		return exchange.Continue()
	}
	if err := client.ValidateScopes(tr.Scope); err != nil {
		return exchange.Reject(oauth2.ErrorInvalidRequest,
			"The specified 'scope' parameter is not valid for this client.")
	}
	return exchange.Continue()
}

// HandleTokenRequest claims the grants that have no stored ticket behind
// them: client credentials and resource owner password.
func (h *Hooks) HandleTokenRequest(_ context.Context, hc *exchange.HandleContext) exchange.Outcome {
	switch hc.Request.GrantType {
	case oauth2.ClientCredentialsGrant:
		return h.handleClientCredentials(hc)
	case oauth2.PasswordGrant:
		return h.handlePassword(hc)
	default:
		return exchange.Continue()
	}
}

func (h *Hooks) handleClientCredentials(hc *exchange.HandleContext) exchange.Outcome {
	tr := hc.Request
	if !tr.IsConfidential {
		return exchange.Reject(oauth2.ErrorInvalidClient,
			"Client authentication is required for the client credentials grant.")
	}
	hc.Ticket = &ticket.Ticket{
		Subject:      tr.ClientID,
		Presenters:   []string{tr.ClientID},
		Scopes:       oauth2.SplitTokens(tr.Scope),
		Resources:    oauth2.SplitTokens(tr.Resource),
		Confidential: true,
	}
	return exchange.Continue()
}

func (h *Hooks) handlePassword(hc *exchange.HandleContext) exchange.Outcome {
	tr := hc.Request
	if h.users == nil {
		return exchange.Reject(oauth2.ErrorUnsupportedGrantType,
			"The resource owner password grant is not supported by this server.")
	}

	user, err := h.users.GetByUsername(tr.Username)
	if err != nil || !user.CheckPassword(tr.Password) {
		h.logger.Debug().Str("username", tr.Username).Msg("resource owner credentials rejected")
		return exchange.Reject(oauth2.ErrorInvalidGrant,
			"The specified resource owner credentials are invalid.")
	}
	if !user.CanAuthenticate() {
		return exchange.Reject(oauth2.ErrorInvalidGrant,
			"The specified resource owner account is not active.")
	}

	hc.Ticket = &ticket.Ticket{
		Subject:      user.ID,
		Presenters:   []string{tr.ClientID},
		Scopes:       oauth2.SplitTokens(tr.Scope),
		Resources:    oauth2.SplitTokens(tr.Resource),
		Confidential: tr.IsConfidential,
	}
	return exchange.Continue()
}
