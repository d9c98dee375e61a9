package memstore

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oakgrove/go-token-server/ticket"
)

var _ ticket.Store = (*Store)(nil)

const (
	defaultCodeTTL    = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Store is an in-memory ticket store backed by expiring caches. Authorization
// codes are single-use: redeeming a code removes it, so a replayed code
// resolves to nothing.
type Store struct {
	codes   *gocache.Cache
	refresh *gocache.Cache
	mu      sync.Mutex // guards the get-then-delete redemption of codes
}

// New creates an empty in-memory ticket store.
func New() *Store {
	return &Store{
		codes:   gocache.New(defaultCodeTTL, 5*time.Minute),
		refresh: gocache.New(defaultRefreshTTL, time.Hour),
	}
}

func (s *Store) ResolveAuthorizationCode(_ context.Context, code string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.codes.Get(code)
	if !ok {
		return nil, nil
	}
	s.codes.Delete(code)
	return value.(*ticket.Ticket).Clone(), nil
}

func (s *Store) ResolveRefreshToken(_ context.Context, token string) (*ticket.Ticket, error) {
	value, ok := s.refresh.Get(token)
	if !ok {
		return nil, nil
	}
	return value.(*ticket.Ticket).Clone(), nil
}

func (s *Store) SaveAuthorizationCode(_ context.Context, code string, t *ticket.Ticket) error {
	s.codes.Set(code, t.Clone(), entryTTL(t, defaultCodeTTL))
	return nil
}

func (s *Store) SaveRefreshToken(_ context.Context, token string, t *ticket.Ticket) error {
	s.refresh.Set(token, t.Clone(), entryTTL(t, defaultRefreshTTL))
	return nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, token string) error {
	s.refresh.Delete(token)
	return nil
}

// entryTTL derives the cache entry lifetime from the ticket expiry so an
// expired artifact cannot outlive its ticket.
func entryTTL(t *ticket.Ticket, fallback time.Duration) time.Duration {
	if t.ExpiresAt == nil {
		return fallback
	}
	ttl := time.Until(*t.ExpiresAt)
	if ttl <= 0 {
		return time.Nanosecond // already expired, evict on next cleanup
	}
	return ttl
}
