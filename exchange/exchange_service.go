// Package exchange implements the token endpoint pipeline: it normalizes a
// token request, authenticates its shape, resolves the presented grant into a
// ticket and hands the result to the issuance side, while letting hook
// implementations observe or override every stage.
package exchange

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/ticket"
)

// Options carries the server-level switches the pipeline and its hooks
// consult while processing a request.
type Options struct {
	// AuthorizationEndpointEnabled gates the authorization code grant. A
	// server that never issues codes rejects the grant up front instead of
	// failing on every lookup.
	AuthorizationEndpointEnabled bool
}

// TokenIssuer turns a validated request and its resolved ticket into the
// final token response.
type TokenIssuer interface {
	Issue(ctx context.Context, tr *oauth2.TokenRequest, t *ticket.Ticket) (*oauth2.TokenResponse, error)
}

// Request is the transport-level slice of an HTTP request the pipeline needs.
// The hosting layer parses the body; the pipeline never touches the network.
type Request struct {
	Method        string
	ContentType   string
	Authorization string
	Form          url.Values
}

// Responder writes the final token response. Exactly one write happens per
// handled request, always through the pipeline's single exit point.
type Responder interface {
	WriteResponse(ctx context.Context, response *oauth2.TokenResponse) error
}

// Service drives token requests through the extract, validate, handle and
// apply stages.
type Service struct {
	tickets ticket.Resolver
	issuer  TokenIssuer
	hooks   Hooks
	opts    Options
	nowFunc func() time.Time
	logger  zerolog.Logger
}

// ServiceOption modifies the Service configuration.
type ServiceOption func(*Service)

// WithHooks installs the policy hooks invoked at each pipeline stage.
func WithHooks(hooks Hooks) ServiceOption {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithNowFunc overrides the clock used for ticket expiry checks.
func WithNowFunc(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = nowFunc
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the token exchange pipeline.
func NewService(tickets ticket.Resolver, issuer TokenIssuer, opts Options, options ...ServiceOption) (*Service, error) {
	if tickets == nil {
		return nil, errors.New("[NewService] ticket resolver is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	s := &Service{
		tickets: tickets,
		issuer:  issuer,
		hooks:   NopHooks{},
		opts:    opts,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// HandleTokenRequest runs a single token request through the pipeline and
// writes the outcome through w. The returned bool reports whether a response
// was produced; false means a hook skipped the request and the hosting layer
// should treat it as unhandled. Protocol failures become error responses, not
// Go errors; the returned error only reflects a failed response write.
func (s *Service) HandleTokenRequest(ctx context.Context, req *Request, w Responder) (bool, error) {
	tr := newTokenRequest(req.Form)

	switch outcome := s.hooks.ExtractTokenRequest(ctx, &ExtractContext{Request: tr, Options: &s.opts}); outcome.kind {
	case outcomeHandled:
		return true, nil
	case outcomeSkipped:
		return false, nil
	case outcomeRejected:
		return s.emitResponse(ctx, tr, rejectionResponse(outcome, oauth2.ErrorInvalidRequest, defaultExtractDescription), w)
	}

	if response := s.validateShape(req, tr); response != nil {
		return s.emitResponse(ctx, tr, response, w)
	}

	extractClientCredentials(tr, req.Authorization)

	switch outcome := s.hooks.ValidateTokenRequest(ctx, &ValidateContext{Request: tr, Options: &s.opts}); outcome.kind {
	case outcomeHandled:
		return true, nil
	case outcomeSkipped:
		return false, nil
	case outcomeRejected:
		return s.emitResponse(ctx, tr, rejectionResponse(outcome, oauth2.ErrorInvalidClient, defaultValidateDescription), w)
	}

	resolved, response := s.resolveTicket(ctx, tr)
	if response != nil {
		return s.emitResponse(ctx, tr, response, w)
	}

	hc := &HandleContext{Request: tr, Ticket: resolved, Options: &s.opts}
	switch outcome := s.hooks.HandleTokenRequest(ctx, hc); outcome.kind {
	case outcomeHandled:
		return true, nil
	case outcomeSkipped:
		return false, nil
	case outcomeRejected:
		return s.emitResponse(ctx, tr, rejectionResponse(outcome, oauth2.ErrorInvalidGrant, defaultHandleDescription), w)
	}

	if hc.Ticket == nil {
		// No built-in resolution and no hook claimed the grant.
		return s.emitResponse(ctx, tr, oauth2.NewErrorResponse(oauth2.ErrorUnsupportedGrantType,
			"The specified grant_type parameter is not supported.", ""), w)
	}

	normalizeLifetimes(resolved, hc.Ticket)

	tokenResponse, err := s.issuer.Issue(ctx, tr, hc.Ticket)
	if err != nil {
		s.logger.Error().Err(err).Str("grant_type", string(tr.GrantType)).Msg("token issuance failed")
		return s.emitResponse(ctx, tr, oauth2.NewErrorResponse(oauth2.ErrorServerError,
			"An internal server error occurred.", ""), w)
	}
	return s.emitResponse(ctx, tr, tokenResponse, w)
}

// resolveTicket resolves and validates the ticket behind an authorization
// code or refresh token. For every other grant it returns (nil, nil) and
// leaves resolution to the Handle hook. A non-nil response means the grant
// was refused.
func (s *Service) resolveTicket(ctx context.Context, tr *oauth2.TokenRequest) (*ticket.Ticket, *oauth2.TokenResponse) {
	var (
		resolved *ticket.Ticket
		err      error
	)
	switch tr.GrantType {
	case oauth2.AuthorizationCodeGrant:
		resolved, err = s.tickets.ResolveAuthorizationCode(ctx, tr.Code)
	case oauth2.RefreshTokenGrant:
		resolved, err = s.tickets.ResolveRefreshToken(ctx, tr.RefreshToken)
	default:
		return nil, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("grant_type", string(tr.GrantType)).Msg("ticket resolution failed")
		return nil, oauth2.NewErrorResponse(oauth2.ErrorServerError,
			"An internal server error occurred.", "")
	}
	if resolved == nil {
		return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant, "Invalid ticket", "")
	}

	if resolved.ExpiresAt == nil || !resolved.ExpiresAt.After(s.nowFunc()) {
		return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant, "Expired ticket", "")
	}

	// A refresh token issued under client authentication may only be
	// redeemed by a client that authenticated again on this request.
	if tr.GrantType == oauth2.RefreshTokenGrant && resolved.Confidential && !tr.IsConfidential {
		return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
			"Client authentication is required to use this ticket", "")
	}

	// Presenter binding. An authorization code without presenters is an
	// issuance bug; a presenter-less refresh token is legitimate for public
	// clients, so only a positive mismatch rejects.
	if tr.GrantType == oauth2.AuthorizationCodeGrant && len(resolved.Presenters) == 0 {
		s.logger.Error().Msg("authorization code ticket has no presenters")
		return nil, oauth2.NewErrorResponse(oauth2.ErrorServerError,
			"An internal server error occurred.", "")
	}
	if tr.ClientID != "" && len(resolved.Presenters) > 0 && !resolved.HasPresenter(tr.ClientID) {
		return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant, "Ticket does not contain matching client_id", "")
	}

	if tr.GrantType == oauth2.AuthorizationCodeGrant {
		if tr.ClientID == "" {
			s.logger.Error().Msg("client_id was not resolved before code redemption")
			return nil, oauth2.NewErrorResponse(oauth2.ErrorServerError,
				"An internal server error occurred.", "")
		}
		if response := validateRedirectURI(resolved, tr); response != nil {
			return nil, response
		}
		if response := validateCodeVerifier(resolved, tr); response != nil {
			return nil, response
		}
	}

	// Refresh requests can narrow the original grant but never widen it.
	if tr.GrantType == oauth2.RefreshTokenGrant {
		if tr.Resource != "" && !oauth2.ContainsAll(resolved.Resources, oauth2.SplitTokens(tr.Resource)) {
			return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
				"Token request doesn't contain matching resource", "")
		}
		if tr.Scope != "" && !oauth2.ContainsAll(resolved.Scopes, oauth2.SplitTokens(tr.Scope)) {
			return nil, oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
				"Token request doesn't contain matching scope", "")
		}
	}

	return resolved, nil
}

// validateRedirectURI enforces the redirect_uri echo for authorization codes.
// The stored value is consumed whether or not the check passes.
func validateRedirectURI(resolved *ticket.Ticket, tr *oauth2.TokenRequest) *oauth2.TokenResponse {
	expected := resolved.TakeOnce(ticket.PropertyRedirectURI)
	if expected == "" {
		return nil
	}
	if tr.RedirectURI == "" {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidRequest,
			"The mandatory 'redirect_uri' parameter was missing.", "")
	}
	if tr.RedirectURI != expected {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
			"The specified 'redirect_uri' parameter didn't match.", "")
	}
	return nil
}

// validateCodeVerifier enforces PKCE when the authorization request pinned a
// code challenge. Both challenge properties are consumed up front so they can
// never flow into the next-generation ticket.
func validateCodeVerifier(resolved *ticket.Ticket, tr *oauth2.TokenRequest) *oauth2.TokenResponse {
	challenge := resolved.TakeOnce(ticket.PropertyCodeChallenge)
	method := oauth2.CodeMethodType(resolved.TakeOnce(ticket.PropertyCodeChallengeMethod))
	if challenge == "" {
		return nil
	}
	if tr.CodeVerifier == "" {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
			"The mandatory 'code_verifier' parameter was missing.", "")
	}
	if !verifyCodeVerifier(challenge, method, tr.CodeVerifier) {
		return oauth2.NewErrorResponse(oauth2.ErrorInvalidGrant,
			"The specified 'code_verifier' was invalid.", "")
	}
	return nil
}

// normalizeLifetimes clears ticket timestamps the Handle stage left unchanged
// so the issuance side assigns fresh ones instead of reusing the redeemed
// ticket's lifetime.
func normalizeLifetimes(original, final *ticket.Ticket) {
	if original == nil {
		return
	}
	if sameTime(original.IssuedAt, final.IssuedAt) {
		final.IssuedAt = nil
	}
	if sameTime(original.ExpiresAt, final.ExpiresAt) {
		final.ExpiresAt = nil
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// emitResponse is the pipeline's single exit point: every response, success
// or error, passes through the Apply hook here before it is written.
func (s *Service) emitResponse(ctx context.Context, tr *oauth2.TokenRequest, response *oauth2.TokenResponse, w Responder) (bool, error) {
	if tr == nil {
		tr = &oauth2.TokenRequest{}
	}
	ac := &ApplyContext{Request: tr, Response: response, Options: &s.opts}
	switch outcome := s.hooks.ApplyTokenResponse(ctx, ac); outcome.kind {
	case outcomeHandled:
		return true, nil
	case outcomeSkipped:
		return false, nil
	case outcomeRejected:
		// Nothing runs after Apply, so a rejection here simply swaps the
		// payload for an error response.
		ac.Response = rejectionResponse(outcome, oauth2.ErrorServerError, defaultApplyDescription)
	}
	if ac.Response.IsError() {
		s.logger.Debug().
			Str("grant_type", string(tr.GrantType)).
			Str("error", ac.Response.Error).
			Str("error_description", ac.Response.ErrorDescription).
			Msg("token request rejected")
	}
	return true, w.WriteResponse(ctx, ac.Response)
}
