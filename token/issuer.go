// Package token turns validated tickets into signed artifacts: JWT access
// tokens, OpenID Connect ID tokens and rotating opaque refresh tokens.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/oakgrove/go-token-server/oauth2"
	"github.com/oakgrove/go-token-server/ticket"
)

const (
	// OpenIDScope triggers ID token issuance when present on the ticket.
	OpenIDScope = "openid"

	refreshTokenBytes = 32 // 256 bits of entropy per refresh token handle
)

// Issuer creates the token response for a resolved ticket. It owns the
// refresh token lifecycle: every issuance that includes a refresh token
// stores a next-generation ticket behind a fresh opaque handle, and redeeming
// a refresh token retires the old handle.
type Issuer struct {
	store              ticket.Store
	signer             Signer
	issuer             string
	audience           string
	accessTokenExpiry  time.Duration
	idTokenExpiry      time.Duration
	refreshTokenExpiry time.Duration
	createRefreshToken bool
	nowFunc            func() time.Time
}

// IssuerOption modifies the Issuer configuration.
type IssuerOption func(*Issuer)

// WithTokenExpiry sets the lifetimes of the issued artifacts. A zero
// refreshTokenExpiry disables refresh tokens entirely.
func WithTokenExpiry(accessTokenExpiry, idTokenExpiry, refreshTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.idTokenExpiry = idTokenExpiry
		i.refreshTokenExpiry = refreshTokenExpiry
		i.createRefreshToken = refreshTokenExpiry > 0
	}
}

// WithNowFunc overrides the clock used for claim timestamps.
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// WithAudience sets the aud claim of issued access tokens.
func WithAudience(audience string) IssuerOption {
	return func(i *Issuer) {
		i.audience = audience
	}
}

// New creates a token issuer signing on behalf of issuerURL.
func New(store ticket.Store, signer Signer, issuerURL string, options ...IssuerOption) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("[token.New] ticket store is required")
	}
	if signer == nil {
		return nil, errors.New("[token.New] signer is required")
	}
	i := &Issuer{
		store:              store,
		signer:             signer,
		issuer:             issuerURL,
		audience:           issuerURL,
		accessTokenExpiry:  15 * time.Minute,
		idTokenExpiry:      time.Hour,
		refreshTokenExpiry: 30 * 24 * time.Hour,
		createRefreshToken: true,
		nowFunc:            time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Issue builds the token response for a ticket that survived grant
// resolution. Tickets arriving with cleared timestamps get fresh ones; a
// ticket that kept explicit timestamps keeps its stated lifetime.
func (i *Issuer) Issue(ctx context.Context, tr *oauth2.TokenRequest, t *ticket.Ticket) (*oauth2.TokenResponse, error) {
	now := i.nowFunc()
	if t.IssuedAt == nil {
		issued := now
		t.IssuedAt = &issued
	}
	if t.ExpiresAt == nil {
		expires := now.Add(i.accessTokenExpiry)
		t.ExpiresAt = &expires
	}

	accessToken, err := i.createAccessToken(tr, t)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] createAccessToken")
	}

	var idToken *string
	if hasScope(t.Scopes, OpenIDScope) {
		idToken, err = i.createIDToken(tr, t)
		if err != nil {
			return nil, errors.Wrap(err, "[Issuer.Issue] createIDToken")
		}
	}

	var refreshToken *string
	if i.createRefreshToken && tr.GrantType != oauth2.ClientCredentialsGrant {
		refreshToken, err = i.rotateRefreshToken(ctx, tr, t)
		if err != nil {
			return nil, errors.Wrap(err, "[Issuer.Issue] rotateRefreshToken")
		}
	}

	return &oauth2.TokenResponse{
		AccessToken:  accessToken,
		IdToken:      idToken,
		TokenType:    "bearer",
		ExpiresIn:    int(t.ExpiresAt.Sub(now).Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(t.Scopes, " "),
	}, nil
}

// JWKS exposes the public signing keys when the issuer signs asymmetrically.
func (i *Issuer) JWKS() (*JWKS, error) {
	keyPairSigner, ok := i.signer.(*KeyPairSigner)
	if !ok {
		return nil, errors.New("JWKS only supported for asymmetric signing")
	}
	return keyPairSigner.GetJWKS()
}

// Signer returns the signer used for issued tokens.
func (i *Issuer) Signer() Signer {
	return i.signer
}

func (i *Issuer) createAccessToken(tr *oauth2.TokenRequest, t *ticket.Ticket) (*string, error) {
	claims := jwt.MapClaims{
		"iss":       i.issuer,                      // The issuer of the token
		"sub":       t.Subject,                     // The principal the ticket was granted for
		"aud":       i.audience,                    // The audience for which the token is intended
		"client_id": tr.ClientID,                   // The OAuth2 client that requested the token
		"scope":     strings.Join(t.Scopes, " "),   // Scopes granted to this token
		"iat":       int64(t.IssuedAt.Unix()),      // Issued At
		"exp":       int64(t.ExpiresAt.Unix()),     // Expiry
		"jti":       uuid.New().String(),           // Unique token ID for revocation
	}
	if len(t.Resources) > 0 {
		claims["resource"] = t.Resources
	}
	return i.signToken(claims)
}

func (i *Issuer) createIDToken(tr *oauth2.TokenRequest, t *ticket.Ticket) (*string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss": i.issuer,
		"sub": t.Subject,
		"aud": tr.ClientID,
		"iat": int64(now.Unix()),
		"exp": int64(now.Add(i.idTokenExpiry).Unix()),
		"jti": uuid.New().String(),
	}
	return i.signToken(claims)
}

// rotateRefreshToken retires the presented refresh token, if any, and stores
// a next-generation ticket under a fresh random handle. The stored ticket
// carries the refresh lifetime, not the access token's.
func (i *Issuer) rotateRefreshToken(ctx context.Context, tr *oauth2.TokenRequest, t *ticket.Ticket) (*string, error) {
	if tr.GrantType == oauth2.RefreshTokenGrant {
		if err := i.store.DeleteRefreshToken(ctx, tr.RefreshToken); err != nil {
			return nil, errors.Wrap(err, "[Issuer.rotateRefreshToken] DeleteRefreshToken")
		}
	}

	handleBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(handleBytes); err != nil {
		return nil, errors.Wrap(err, "[Issuer.rotateRefreshToken] rand.Read")
	}
	handle := hex.EncodeToString(handleBytes)

	next := t.Clone()
	issued := i.nowFunc()
	expires := issued.Add(i.refreshTokenExpiry)
	next.IssuedAt = &issued
	next.ExpiresAt = &expires

	if err := i.store.SaveRefreshToken(ctx, handle, next); err != nil {
		return nil, errors.Wrap(err, "[Issuer.rotateRefreshToken] SaveRefreshToken")
	}
	return &handle, nil
}

func (i *Issuer) signToken(claims jwt.MapClaims) (*string, error) {
	signedToken, err := i.signer.Sign(claims)
	if err != nil {
		return nil, err
	}
	return &signedToken, nil
}

func hasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
