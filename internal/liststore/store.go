// Package liststore caches pages of remote collections and keeps them in
// step with mutations by re-fetching rather than patching locally: the
// backend stays the source of truth.
//
// A Store serialises fetches per key. At most one fetch for a key is in
// flight; Refresh calls that arrive meanwhile are coalesced into a single
// follow-up fetch issued once the current one settles. Every fetch carries an
// issue number and a result is applied only when its number is newer than the
// last applied one. A failed fetch keeps the previous page.
package liststore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// Key identifies one page of one resource
type Key struct {
	Resource string
	Page     int
	Limit    int
}

// NewKey builds the key for a resource and page window
func NewKey(resource string, window models.PageWindow) Key {
	window = window.Normalize()
	return Key{Resource: resource, Page: window.Page, Limit: window.Limit}
}

// Window returns the page window of the key
func (k Key) Window() models.PageWindow {
	return models.PageWindow{Page: k.Page, Limit: k.Limit}
}

func (k Key) String() string {
	return fmt.Sprintf("%s?page=%d&limit=%d", k.Resource, k.Page, k.Limit)
}

// Page is one fetched slice of a collection
type Page[T any] struct {
	Key       Key       `json:"-"`
	Items     []T       `json:"items"`
	Total     int64     `json:"total"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FetchFunc loads one page window from the backend
type FetchFunc[T any] func(ctx context.Context, window models.PageWindow) ([]T, int64, error)

// Options tune a Store
type Options struct {
	CacheSize    int
	TTL          time.Duration // zero keeps pages until invalidated
	FetchTimeout time.Duration
	Metrics      *Metrics
	Now          func() time.Time
}

// Store is a per-resource page cache
type Store[T any] struct {
	resource string
	fetch    FetchFunc[T]
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	cache  *lru.Cache[Key, *entry[T]]
	active map[Key]*entry[T]
}

type entry[T any] struct {
	page  *Page[T]
	err   error
	stale bool

	issued  uint64
	applied uint64

	inflight bool
	rerun    bool
	done     chan struct{}
}

// New creates a store for resource backed by fetch
func New[T any](resource string, fetch FetchFunc[T], opts Options, logger *slog.Logger) (*Store[T], error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache, err := lru.New[Key, *entry[T]](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	return &Store[T]{
		resource: resource,
		fetch:    fetch,
		opts:     opts,
		logger:   logger,
		cache:    cache,
		active:   make(map[Key]*entry[T]),
	}, nil
}

// Resource returns the resource path the store caches
func (s *Store[T]) Resource() string {
	return s.resource
}

// Key builds a key for this store's resource
func (s *Store[T]) Key(window models.PageWindow) Key {
	return NewKey(s.resource, window)
}

// Load returns the page for key, fetching it when it is missing, stale or
// expired. Concurrent loads of the same key share one fetch. On failure the
// previously fetched page, if any, is returned together with the error.
func (s *Store[T]) Load(ctx context.Context, key Key) (*Page[T], error) {
	s.mu.Lock()
	e := s.lookup(key)

	if e.inflight {
		done := e.done
		s.mu.Unlock()
		s.opts.Metrics.joined(s.resource)
		return s.wait(ctx, e, done)
	}

	if s.fresh(e) {
		page := e.page
		s.mu.Unlock()
		s.opts.Metrics.hit(s.resource)
		return page, nil
	}

	done := s.start(key, e)
	s.mu.Unlock()
	return s.wait(ctx, e, done)
}

// Refresh forces a re-fetch of key and waits for it. When a fetch for key is
// already in flight the refresh is folded into one follow-up fetch.
func (s *Store[T]) Refresh(ctx context.Context, key Key) (*Page[T], error) {
	s.mu.Lock()
	e := s.lookup(key)

	var done chan struct{}
	if e.inflight {
		e.rerun = true
		done = e.done
		s.opts.Metrics.coalesced(s.resource)
	} else {
		done = s.start(key, e)
	}
	s.mu.Unlock()

	return s.wait(ctx, e, done)
}

// Peek returns the cached page for key without fetching
func (s *Store[T]) Peek(key Key) (*Page[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.active[key]; ok && e.page != nil {
		return e.page, true
	}
	if e, ok := s.cache.Peek(key); ok && e.page != nil {
		return e.page, true
	}
	return nil, false
}

// InvalidateAll marks every cached page stale so the next Load re-fetches
// it. Pages being fetched right now get a follow-up fetch, since the running
// request may predate the mutation that caused the invalidation.
func (s *Store[T]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.cache.Keys() {
		if e, ok := s.cache.Peek(key); ok {
			e.stale = true
		}
	}
	for _, e := range s.active {
		e.stale = true
		e.rerun = true
	}
}

// lookup returns the entry for key, creating it if needed. Caller holds mu.
func (s *Store[T]) lookup(key Key) *entry[T] {
	if e, ok := s.active[key]; ok {
		return e
	}
	if e, ok := s.cache.Get(key); ok {
		return e
	}
	e := &entry[T]{}
	s.cache.Add(key, e)
	return e
}

// fresh reports whether the entry can be served without fetching. Caller holds mu.
func (s *Store[T]) fresh(e *entry[T]) bool {
	if e.page == nil || e.err != nil || e.stale {
		return false
	}
	if s.opts.TTL <= 0 {
		return true
	}
	return s.opts.Now().Sub(e.page.FetchedAt) < s.opts.TTL
}

// start issues a fetch for key. Caller holds mu.
func (s *Store[T]) start(key Key, e *entry[T]) chan struct{} {
	e.issued++
	e.inflight = true
	e.done = make(chan struct{})
	s.active[key] = e

	go s.run(key, e)

	return e.done
}

// run fetches key until no follow-up is pending, then releases waiters
func (s *Store[T]) run(key Key, e *entry[T]) {
	for {
		s.mu.Lock()
		issue := e.issued
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
		items, total, err := s.fetch(ctx, key.Window())
		cancel()

		s.mu.Lock()
		s.apply(key, e, issue, items, total, err)

		if e.rerun {
			e.rerun = false
			e.issued++
			s.mu.Unlock()
			continue
		}

		e.inflight = false
		delete(s.active, key)
		s.cache.Add(key, e)
		close(e.done)
		s.mu.Unlock()
		return
	}
}

// apply stores a fetch result unless a later-issued one was applied already.
// Caller holds mu.
func (s *Store[T]) apply(key Key, e *entry[T], issue uint64, items []T, total int64, err error) bool {
	if issue <= e.applied {
		s.opts.Metrics.dropped(s.resource)
		s.logger.Debug("dropped superseded page",
			slog.String("key", key.String()),
			slog.Uint64("issue", issue),
			slog.Uint64("applied", e.applied),
		)
		return false
	}
	e.applied = issue

	if err != nil {
		e.err = err
		s.opts.Metrics.fetched(s.resource, "error")
		s.logger.Warn("page fetch failed",
			slog.String("key", key.String()),
			slog.Bool("has_previous", e.page != nil),
			slog.String("error", err.Error()),
		)
		return true
	}

	e.page = &Page[T]{
		Key:       key,
		Items:     items,
		Total:     total,
		FetchedAt: s.opts.Now(),
	}
	e.err = nil
	e.stale = false
	s.opts.Metrics.fetched(s.resource, "ok")
	return true
}

// wait blocks until done closes or ctx ends and returns the entry's state
func (s *Store[T]) wait(ctx context.Context, e *entry[T], done chan struct{}) (*Page[T], error) {
	select {
	case <-done:
	case <-ctx.Done():
		s.mu.Lock()
		page := e.page
		s.mu.Unlock()
		return page, ctx.Err()
	}

	s.mu.Lock()
	page, err := e.page, e.err
	s.mu.Unlock()

	if err != nil && page != nil {
		s.opts.Metrics.staleServed(s.resource)
	}
	return page, err
}
