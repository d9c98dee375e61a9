package exchange

import (
	"context"

	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/ticket"
)

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeHandled
	outcomeSkipped
	outcomeRejected
)

// Outcome is the result of a hook invocation. It is a closed set of four
// variants so that illegal combinations (for example "handled" with an error
// code) cannot be represented:
//
//   - Continue: the hook expressed no opinion, built-in processing proceeds.
//   - HandledResponse: the hook already wrote the full response, stop.
//   - Skip: the hook declined the request entirely, defer to the next layer.
//   - Reject: the hook refused the request, an OAuth2 error must be emitted.
type Outcome struct {
	kind             outcomeKind
	errorCode        string
	errorDescription string
	errorURI         string
}

// Continue lets the built-in pipeline logic run for the current stage.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// HandledResponse signals that the hook produced the response itself and the
// pipeline must stop without writing anything.
func HandledResponse() Outcome {
	return Outcome{kind: outcomeHandled}
}

// Skip signals that the hook declined to process the request; control returns
// to the hosting layer.
func Skip() Outcome {
	return Outcome{kind: outcomeSkipped}
}

// Reject refuses the request with an OAuth2 error. An empty code falls back
// to the stage's default (invalid_request, invalid_client or invalid_grant);
// an empty description falls back to a deterministic stage message.
func Reject(code, description string) Outcome {
	return Outcome{kind: outcomeRejected, errorCode: code, errorDescription: description}
}

// RejectWithURI is Reject with an additional error_uri.
func RejectWithURI(code, description, uri string) Outcome {
	return Outcome{kind: outcomeRejected, errorCode: code, errorDescription: description, errorURI: uri}
}

// ExtractContext is passed to the Extract hook before any built-in parsing or
// validation has run.
type ExtractContext struct {
	Request *oauth2.TokenRequest
	Options *Options
}

// ValidateContext is passed to the Validate hook. A hook that authenticates
// the client sets Request.IsConfidential; the built-in pipeline never sets it.
type ValidateContext struct {
	Request *oauth2.TokenRequest
	Options *Options
}

// HandleContext is passed to the Handle hook after grant resolution. For
// authorization-code and refresh-token grants Ticket holds the resolved,
// validated ticket; for all other grants it starts nil and the hook is
// expected to populate it to claim the grant. The hook may also substitute a
// completely different ticket.
type HandleContext struct {
	Request *oauth2.TokenRequest
	Ticket  *ticket.Ticket
	Options *Options
}

// ApplyContext is passed to the Apply hook just before the response payload
// is written. The hook may observe or replace Response.
type ApplyContext struct {
	Request  *oauth2.TokenRequest
	Response *oauth2.TokenResponse
	Options  *Options
}

// Hooks lets external policy code observe, short-circuit, reject or modify
// processing at each pipeline stage. Implementations embed NopHooks and
// override the stages they care about.
type Hooks interface {
	ExtractTokenRequest(ctx context.Context, hc *ExtractContext) Outcome
	ValidateTokenRequest(ctx context.Context, hc *ValidateContext) Outcome
	HandleTokenRequest(ctx context.Context, hc *HandleContext) Outcome
	ApplyTokenResponse(ctx context.Context, hc *ApplyContext) Outcome
}

// NopHooks is a Hooks implementation that leaves every stage to the built-in
// pipeline.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) ExtractTokenRequest(context.Context, *ExtractContext) Outcome {
	return Continue()
}

func (NopHooks) ValidateTokenRequest(context.Context, *ValidateContext) Outcome {
	return Continue()
}

func (NopHooks) HandleTokenRequest(context.Context, *HandleContext) Outcome {
	return Continue()
}

func (NopHooks) ApplyTokenResponse(context.Context, *ApplyContext) Outcome {
	return Continue()
}
