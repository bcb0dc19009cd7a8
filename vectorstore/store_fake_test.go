package vectorstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
)

var errBackend = errors.New("connection reset")

// fakeStore counts calls and fails while failing is set.
type fakeStore struct {
	mu      sync.Mutex
	failing bool
	delay   time.Duration
	calls   map[string]int
	hits    []*core.ScoredDocument
}

var _ storage.DocumentStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]int)}
}

func (f *fakeStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	failing, delay := f.failing, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if failing {
		return errBackend
	}
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, docs ...*core.VectorDocument) error {
	return f.enter(OpUpsert)
}

func (f *fakeStore) Get(ctx context.Context, id string) (*core.VectorDocument, error) {
	if err := f.enter(OpGet); err != nil {
		return nil, err
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, ids ...string) error {
	return f.enter(OpDelete)
}

func (f *fakeStore) DeleteByFilter(ctx context.Context, filter core.Filter) (int, error) {
	return 0, f.enter(OpDeleteByFilter)
}

func (f *fakeStore) VectorQuery(ctx context.Context, q storage.VectorQuery) ([]*core.ScoredDocument, error) {
	if err := f.enter(OpVectorSearch); err != nil {
		return nil, err
	}
	return f.hits, nil
}

func (f *fakeStore) TextQuery(ctx context.Context, q storage.TextQuery) ([]*core.ScoredDocument, error) {
	if err := f.enter(OpTextSearch); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeStore) Count(ctx context.Context, filter core.Filter) (int, error) {
	return 0, f.enter(OpCount)
}

func (f *fakeStore) Stats(ctx context.Context) (*core.CollectionStats, error) {
	if err := f.enter(OpStats); err != nil {
		return nil, err
	}
	return &core.CollectionStats{}, nil
}

func (f *fakeStore) IndexExists(ctx context.Context, name string) (bool, error) {
	return true, f.enter(OpIndexExists)
}

func (f *fakeStore) Close() error { return nil }

// pausingStore wraps a store and holds the first VectorQuery open after it
// has read its results, until release is closed.
type pausingStore struct {
	storage.DocumentStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(inner storage.DocumentStore) *pausingStore {
	return &pausingStore{DocumentStore: inner, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) VectorQuery(ctx context.Context, q storage.VectorQuery) ([]*core.ScoredDocument, error) {
	hits, err := p.DocumentStore.VectorQuery(ctx, q)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return hits, err
}
