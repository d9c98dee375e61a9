package clients

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidScope is returned when a client requests a scope it was not
// registered for.
var ErrInvalidScope = errors.New("invalid scope")

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

type Client struct {
	ID           string     `json:"id"`
	Type         ClientType `json:"type"` // public or confidential
	Description  string     `json:"description"`
	SecretHash   string     `json:"-"` // bcrypt hash, never serialized
	RedirectURIs []string   `json:"redirectURIs"`
	Scopes       []string   `json:"scopes"` // Allowed scopes for this client
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// VerifySecret checks a presented secret against the stored hash
func (c *Client) VerifySecret(secret string) bool {
	if c.SecretHash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// HashSecret hashes a client secret for storage
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "[HashSecret] GenerateFromPassword")
	}
	return string(bytes), nil
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRedirectURI checks if uri is one of the client's registered redirect URIs
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}
