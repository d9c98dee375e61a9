package exchange

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oakgrove/go-token-server/oauth2"
)

func TestExtractClientCredentials_BasicHeader(t *testing.T) {
	tr := &oauth2.TokenRequest{}
	extractClientCredentials(tr, "Basic "+base64.StdEncoding.EncodeToString([]byte("client-1:secret:with:colons")))

	require.Equal(t, "client-1", tr.ClientID)
	require.Equal(t, "secret:with:colons", tr.ClientSecret)
}

func TestExtractClientCredentials_CaseInsensitiveScheme(t *testing.T) {
	tr := &oauth2.TokenRequest{}
	extractClientCredentials(tr, "basic "+base64.StdEncoding.EncodeToString([]byte("client-1:s")))

	require.Equal(t, "client-1", tr.ClientID)
}

func TestExtractClientCredentials_BodyWins(t *testing.T) {
	tr := &oauth2.TokenRequest{ClientID: "body-client"}
	extractClientCredentials(tr, "Basic "+base64.StdEncoding.EncodeToString([]byte("header-client:s")))

	require.Equal(t, "body-client", tr.ClientID)
	require.Empty(t, tr.ClientSecret)
}

func TestExtractClientCredentials_Malformed(t *testing.T) {
	for _, header := range []string{
		"",
		"Bearer abc",
		"Basic !!!not-base64!!!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
	} {
		tr := &oauth2.TokenRequest{}
		extractClientCredentials(tr, header)
		require.Empty(t, tr.ClientID, "header %q", header)
		require.Empty(t, tr.ClientSecret, "header %q", header)
	}
}

func TestVerifyCodeVerifier_S256(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	require.True(t, verifyCodeVerifier(oauth2.S256Challenge(verifier), oauth2.CodeMethodTypeS256, verifier))
	require.False(t, verifyCodeVerifier(oauth2.S256Challenge(verifier), oauth2.CodeMethodTypeS256, "other"))
}

func TestVerifyCodeVerifier_Plain(t *testing.T) {
	require.True(t, verifyCodeVerifier("raw-value", oauth2.CodeMethodTypeNone, "raw-value"))
	require.True(t, verifyCodeVerifier("raw-value", "", "raw-value"))
	require.False(t, verifyCodeVerifier("raw-value", oauth2.CodeMethodTypeNone, "other"))
}

func TestVerifyCodeVerifier_UnknownMethod(t *testing.T) {
	require.False(t, verifyCodeVerifier("challenge", "S512", "challenge"))
}
