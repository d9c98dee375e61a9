package exchange

import (
	"crypto/subtle"

	"github.com/oakgrove/go-token-server/oauth2"
)

// verifyCodeVerifier checks the request's code_verifier against the challenge
// stored when the authorization code was issued. An absent method means
// "plain". The comparison is constant-time to resist timing side channels.
func verifyCodeVerifier(challenge string, method oauth2.CodeMethodType, verifier string) bool {
	var computed string
	switch method {
	case oauth2.CodeMethodTypeS256:
		computed = oauth2.S256Challenge(verifier)
	case oauth2.CodeMethodTypeNone, "":
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
