package exchange

import "github.com/oakgrove/go-token-server/oauth2"

// Deterministic fallback descriptions used when a hook rejects a request
// without supplying its own.
const (
	defaultExtractDescription  = "The token request was rejected before it could be processed."
	defaultValidateDescription = "The token request was rejected by the client validation policy."
	defaultHandleDescription   = "The token request was rejected while the grant was being processed."
	defaultApplyDescription    = "The token response was rejected before it could be returned."
)

// rejectionResponse turns a Rejected outcome into an error response, applying
// the stage defaults for any field the hook left empty.
func rejectionResponse(o Outcome, defaultCode, defaultDescription string) *oauth2.TokenResponse {
	code := o.errorCode
	if code == "" {
		code = defaultCode
	}
	description := o.errorDescription
	if description == "" {
		description = defaultDescription
	}
	return oauth2.NewErrorResponse(code, description, o.errorURI)
}
