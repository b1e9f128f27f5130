package session

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	TokenKey         = "token"
	AuthenticatedKey = "isAuthenticated"

	entryKeySeparator = "||"
)

var (
	ErrEmptyToken = errors.New("session token empty")
	ErrNoSession  = errors.New("no client session in context")
)

type sessionIDKey struct{}

// WithID binds the context to one client session; the Store only reads and
// writes the entries of that session
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}

// EntryKey is the storage key of a session entry: <session id>||<name>
func EntryKey(id, name string) string {
	return id + entryKeySeparator + name
}

// Store holds the bearer token of each client session, picked by the session id
// in the context. Storage is the only source of truth, nothing is cached here,
// so every process sharing the storage sees the same sessions.
type Store struct {
	storage Storage
}

func NewStore(storage Storage) *Store {
	return &Store{
		storage: storage,
	}
}

// Token returns the token of the context's session. A context without a session
// simply has no token.
func (s *Store) Token(ctx context.Context) (string, bool, error) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return "", false, nil
	}

	token, found, err := s.storage.Get(ctx, EntryKey(id, TokenKey))
	if err != nil {
		return "", false, fmt.Errorf("get session token: %w", err)
	}
	if !found || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// IsAuthenticated is true iff the context's session has a token. A failing
// storage means no session.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, found, err := s.Token(ctx)
	if err != nil {
		log.Errorf("session store, is authenticated: %s", err)
		return false
	}
	return found
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	id, ok := IDFromContext(ctx)
	if !ok {
		return ErrNoSession
	}

	if err := s.storage.Set(ctx, EntryKey(id, TokenKey), token); err != nil {
		return fmt.Errorf("set session token: %w", err)
	}
	// the flag is only kept for older readers of the storage, token presence decides
	if err := s.storage.Set(ctx, EntryKey(id, AuthenticatedKey), "true"); err != nil {
		return fmt.Errorf("set session flag: %w", err)
	}
	return nil
}

// Clear removes the entries of the context's session, other sessions are untouched
func (s *Store) Clear(ctx context.Context) error {
	id, ok := IDFromContext(ctx)
	if !ok {
		return nil
	}
	if err := s.storage.Delete(ctx, EntryKey(id, TokenKey), EntryKey(id, AuthenticatedKey)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Watch calls fn with the authenticated flag of the context's session once
// subscribed, and then every time the flag changes, until ctx is done. Changes
// of other sessions are not reported.
func (s *Store) Watch(ctx context.Context, fn func(authenticated bool)) error {
	changes, err := s.storage.Changes(ctx)
	if err != nil {
		return fmt.Errorf("watch session changes: %w", err)
	}

	last := s.IsAuthenticated(ctx)
	fn(last)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if current := s.IsAuthenticated(ctx); current != last {
				last = current
				fn(current)
			}
		}
	}
}
