package ticket

import "context"

// Resolver is the read side of the ticket store, consumed by the token
// exchange pipeline. Both methods return (nil, nil) when the handle is
// unknown, undecodable or already consumed - that is a protocol condition,
// not an infrastructure error.
type Resolver interface {
	// ResolveAuthorizationCode redeems an authorization code. The store must
	// guarantee a code is redeemable at most once, even under concurrent
	// redemption attempts.
	ResolveAuthorizationCode(ctx context.Context, code string) (*Ticket, error)

	// ResolveRefreshToken looks up the ticket behind a refresh token without
	// consuming it; rotation is the issuance side's responsibility.
	ResolveRefreshToken(ctx context.Context, token string) (*Ticket, error)
}

// Store is the full ticket store used by the issuance side.
type Store interface {
	Resolver

	SaveAuthorizationCode(ctx context.Context, code string, t *Ticket) error
	SaveRefreshToken(ctx context.Context, token string, t *Ticket) error
	DeleteRefreshToken(ctx context.Context, token string) error
}
