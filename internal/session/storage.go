package session

import "context"

var _ Storage = (*RedisStorage)(nil)
var _ Storage = (*FileStorage)(nil)
var _ Storage = (*TestStorage)(nil)

// Storage is a durable string key-value store holding the session entries.
// Changes emits a signal whenever any entry is mutated, by this process or
// by another one sharing the same storage; the channel is closed when ctx is done.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// notify does a non-blocking send; a pending signal already covers the new change
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
