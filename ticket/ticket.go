package ticket

import "time"

// Reserved property keys. These are written by the issuance side and consumed
// exactly once during grant validation so they cannot leak into the
// next-generation ticket.
const (
	PropertyRedirectURI         = "redirect_uri"
	PropertyCodeChallenge       = "code_challenge"
	PropertyCodeChallengeMethod = "code_challenge_method"
)

// Ticket is the resolved representation of a previously granted authorization
// decision: the principal it was granted to, the clients allowed to redeem it,
// the scopes and resources it covers, and its lifetime.
type Ticket struct {
	// Subject is the opaque principal identity the ticket was granted for.
	// For client credentials tickets this is the client ID itself.
	Subject string `json:"subject"`

	// Properties carries string metadata attached at issuance time,
	// including the reserved keys consumed during validation.
	Properties map[string]string `json:"properties,omitempty"`

	// Presenters lists the client identifiers authorized to redeem this
	// ticket. Refresh tokens issued to public clients may be presenter-less.
	Presenters []string `json:"presenters,omitempty"`

	// Scopes and Resources record what the original grant covered. Refresh
	// requests can narrow but never escalate beyond them.
	Scopes    []string `json:"scopes,omitempty"`
	Resources []string `json:"resources,omitempty"`

	// Confidential records whether the ticket was issued under full client
	// authentication. Redeeming a confidential refresh token requires the
	// client to authenticate again.
	Confidential bool `json:"confidential,omitempty"`

	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TakeOnce returns the property stored under key and removes it from the
// ticket, making single-use-per-validation explicit. Returns "" when the
// property is absent.
func (t *Ticket) TakeOnce(key string) string {
	value, ok := t.Properties[key]
	if !ok {
		return ""
	}
	delete(t.Properties, key)
	return value
}

// SetProperty stores a property value, allocating the map on first use.
func (t *Ticket) SetProperty(key, value string) {
	if t.Properties == nil {
		t.Properties = make(map[string]string)
	}
	t.Properties[key] = value
}

// HasPresenter reports whether clientID is authorized to redeem this ticket.
// Comparison is ordinal and case-sensitive.
func (t *Ticket) HasPresenter(clientID string) bool {
	for _, presenter := range t.Presenters {
		if presenter == clientID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the ticket. Stores hand out clones so that
// property consumption during validation never mutates the stored artifact.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := &Ticket{
		Subject:      t.Subject,
		Confidential: t.Confidential,
	}
	if t.Properties != nil {
		clone.Properties = make(map[string]string, len(t.Properties))
		for k, v := range t.Properties {
			clone.Properties[k] = v
		}
	}
	clone.Presenters = append([]string(nil), t.Presenters...)
	clone.Scopes = append([]string(nil), t.Scopes...)
	clone.Resources = append([]string(nil), t.Resources...)
	if t.IssuedAt != nil {
		issued := *t.IssuedAt
		clone.IssuedAt = &issued
	}
	if t.ExpiresAt != nil {
		expires := *t.ExpiresAt
		clone.ExpiresAt = &expires
	}
	return clone
}
