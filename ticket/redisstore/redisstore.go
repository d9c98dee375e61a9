package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/oakgrove/go-token-server/ticket"
)

var _ ticket.Store = (*Store)(nil)

const (
	codeKeyPrefix    = "ticket:code:"
	refreshKeyPrefix = "ticket:refresh:"

	defaultCodeTTL    = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Store is a Redis-backed ticket store. Authorization codes are redeemed with
// GETDEL, which makes single-use atomic even under concurrent redemption
// attempts against the same code.
type Store struct {
	client     redis.UniversalClient
	codeTTL    time.Duration
	refreshTTL time.Duration
}

// StoreOption modifies the Store configuration.
type StoreOption func(*Store)

// WithTTL overrides the fallback lifetimes used when a ticket carries no
// expiry of its own.
func WithTTL(codeTTL, refreshTTL time.Duration) StoreOption {
	return func(s *Store) {
		s.codeTTL = codeTTL
		s.refreshTTL = refreshTTL
	}
}

// New creates a ticket store on top of an existing Redis client.
func New(client redis.UniversalClient, options ...StoreOption) *Store {
	s := &Store{
		client:     client,
		codeTTL:    defaultCodeTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) ResolveAuthorizationCode(ctx context.Context, code string) (*ticket.Ticket, error) {
	data, err := s.client.GetDel(ctx, codeKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.ResolveAuthorizationCode] GetDel")
	}
	return unmarshalTicket(data)
}

func (s *Store) ResolveRefreshToken(ctx context.Context, token string) (*ticket.Ticket, error) {
	data, err := s.client.Get(ctx, refreshKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.ResolveRefreshToken] Get")
	}
	return unmarshalTicket(data)
}

func (s *Store) SaveAuthorizationCode(ctx context.Context, code string, t *ticket.Ticket) error {
	return s.save(ctx, codeKeyPrefix+code, t, s.codeTTL)
}

func (s *Store) SaveRefreshToken(ctx context.Context, token string, t *ticket.Ticket) error {
	return s.save(ctx, refreshKeyPrefix+token, t, s.refreshTTL)
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, refreshKeyPrefix+token).Err(); err != nil {
		return errors.Wrap(err, "[Store.DeleteRefreshToken] Del")
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, t *ticket.Ticket, fallbackTTL time.Duration) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "[Store.save] Marshal")
	}
	ttl := fallbackTTL
	if t.ExpiresAt != nil {
		ttl = time.Until(*t.ExpiresAt)
		if ttl <= 0 {
			return nil // already expired, nothing worth storing
		}
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[Store.save] Set")
	}
	return nil
}

func unmarshalTicket(data []byte) (*ticket.Ticket, error) {
	var t ticket.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "[unmarshalTicket] Unmarshal")
	}
	return &t, nil
}
