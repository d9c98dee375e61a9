package oauth2

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SplitTokens splits a space-delimited parameter value (scope, resource) into
// its individual tokens, dropping empty entries.
func SplitTokens(value string) []string {
	if value == "" {
		return nil
	}
	result := make([]string, 0)
	for _, token := range strings.Split(value, " ") {
		if token != "" {
			result = append(result, token)
		}
	}
	return result
}

// ContainsAll reports whether every requested token is present in granted.
// Comparison is ordinal and case-sensitive.
func ContainsAll(granted, requested []string) bool {
	for _, want := range requested {
		found := false
		for _, have := range granted {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// S256Challenge derives the PKCE code challenge for a verifier using the S256
// method: BASE64URL(SHA256(verifier)) without padding.
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
