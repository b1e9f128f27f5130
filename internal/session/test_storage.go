package session

import (
	"context"
	"sync"
)

// TestStorage is an in-memory Storage used in tests; it is not durable
type TestStorage struct {
	mu          sync.Mutex
	Entries     map[string]string
	GetErr      error
	subscribers []chan struct{}
}

func NewTestStorage() *TestStorage {
	return &TestStorage{
		Entries: make(map[string]string),
	}
}

func (ts *TestStorage) Get(_ context.Context, key string) (string, bool, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.GetErr != nil {
		return "", false, ts.GetErr
	}
	val, ok := ts.Entries[key]
	return val, ok, nil
}

func (ts *TestStorage) Set(_ context.Context, key, value string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Entries[key] = value
	ts.notifyAll()
	return nil
}

func (ts *TestStorage) Delete(_ context.Context, keys ...string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, k := range keys {
		delete(ts.Entries, k)
	}
	ts.notifyAll()
	return nil
}

func (ts *TestStorage) Changes(ctx context.Context) (<-chan struct{}, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	sub := make(chan struct{}, 1)
	ts.subscribers = append(ts.subscribers, sub)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ts.unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub:
				notify(out)
			}
		}
	}()

	return out, nil
}

func (ts *TestStorage) unsubscribe(sub chan struct{}) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i, s := range ts.subscribers {
		if s == sub {
			ts.subscribers = append(ts.subscribers[:i], ts.subscribers[i+1:]...)
			return
		}
	}
}

// SubscribersCount lets tests wait for a watcher to be in place
func (ts *TestStorage) SubscribersCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.subscribers)
}

func (ts *TestStorage) notifyAll() {
	for _, sub := range ts.subscribers {
		notify(sub)
	}
}
