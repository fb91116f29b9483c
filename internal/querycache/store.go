// Package querycache is a client-side page store. Each key holds the raw JSON
// of one fetched page (a feed page, an idea detail, a profile page) together
// with the fetcher that can reload it.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/affan-mulla/nextup/internal/cache"
	"github.com/affan-mulla/nextup/internal/pkg/log"
)

var (
	// ErrNoFetcher is returned when a key has no registered fetcher
	ErrNoFetcher = errors.New("no fetcher registered")

	// ErrSuspended is returned when a fetch is attempted on a suspended key
	ErrSuspended = errors.New("key is suspended")

	// ErrStale is returned when a fetch completed after its key was
	// suspended or cancelled and its result was dropped
	ErrStale = errors.New("fetch result discarded")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("query cache closed")
)

// Fetcher loads the current server copy of one page
type Fetcher func(ctx context.Context) ([]byte, error)

// Priority selects how Revalidate schedules a refetch
type Priority int

const (
	// PriorityActive refetches right away
	PriorityActive Priority = iota
	// PriorityBackground queues the refetch for the paced worker
	PriorityBackground
)

func (p Priority) String() string {
	if p == PriorityActive {
		return "active"
	}
	return "background"
}

// Entry is one cached page
type Entry struct {
	Key  string
	Page []byte
}

// Store holds cached pages and coordinates their refetches
type Store struct {
	cache cache.Cache

	// pages serializes multi-key writes against readers
	pages sync.RWMutex

	mu         sync.Mutex
	fetchers   map[string]Fetcher
	observers  map[string]int
	suspended  map[string]int
	generation map[string]uint64
	inflight   map[string]map[uint64]context.CancelFunc
	nextID     uint64
	deferred   map[string]Priority
	queued     map[string]bool
	queue      []string
	closed     bool

	wake    chan struct{}
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Store
type Option func(*Store)

// WithCache replaces the backing cache
func WithCache(c cache.Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithRevalidationRate paces the background worker
func WithRevalidationRate(limit rate.Limit, burst int) Option {
	return func(s *Store) { s.limiter = rate.NewLimiter(limit, burst) }
}

// New creates a store and starts its background revalidation worker
func New(opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		fetchers:   make(map[string]Fetcher),
		observers:  make(map[string]int),
		suspended:  make(map[string]int),
		generation: make(map[string]uint64),
		inflight:   make(map[string]map[uint64]context.CancelFunc),
		deferred:   make(map[string]Priority),
		queued:     make(map[string]bool),
		wake:       make(chan struct{}, 1),
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewPageStoreCache()
	}

	s.wg.Add(1)
	go s.worker()
	return s
}

// Register sets the fetcher used to load key
func (s *Store) Register(key string, fetcher Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchers[key] = fetcher
}

// Observe marks key as actively viewed until release is called
func (s *Store) Observe(key string) (release func()) {
	s.mu.Lock()
	s.observers[key]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.observers[key]--; s.observers[key] <= 0 {
				delete(s.observers, key)
			}
		})
	}
}

// IsActive reports whether anything observes key
func (s *Store) IsActive(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers[key] > 0
}

// Get returns the cached page at key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.pages.RLock()
	defer s.pages.RUnlock()
	return s.cache.Get(ctx, key)
}

// Set stores one page
func (s *Store) Set(ctx context.Context, key string, page []byte) error {
	s.pages.Lock()
	defer s.pages.Unlock()
	return s.cache.Set(ctx, key, page, 0)
}

// SetMany stores several pages. Readers see either none or all of them.
func (s *Store) SetMany(ctx context.Context, pages map[string][]byte) error {
	s.pages.Lock()
	defer s.pages.Unlock()

	for key, page := range pages {
		if err := s.cache.Set(ctx, key, page, 0); err != nil {
			return fmt.Errorf("failed to store page %s: %w", key, err)
		}
	}
	return nil
}

// Delete drops the cached page at key
func (s *Store) Delete(ctx context.Context, key string) error {
	s.pages.Lock()
	defer s.pages.Unlock()
	return s.cache.Delete(ctx, key)
}

// Find returns every cached page for which match is true, ordered by key
func (s *Store) Find(ctx context.Context, match func(key string, page []byte) bool) ([]Entry, error) {
	s.pages.RLock()
	defer s.pages.RUnlock()

	keys, err := s.cache.Keys(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	sort.Strings(keys)

	var entries []Entry
	for _, key := range keys {
		page, err := s.cache.Get(ctx, key)
		if errors.Is(err, cache.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", key, err)
		}
		if match(key, page) {
			entries = append(entries, Entry{Key: key, Page: page})
		}
	}
	return entries, nil
}

// Fetch loads key through its fetcher and stores the result. The result is
// dropped with ErrStale when the key was suspended or cancelled while the
// fetch ran.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	fetcher, ok := s.fetchers[key]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoFetcher, key)
	}
	if s.suspended[key] > 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSuspended, key)
	}
	gen := s.generation[key]
	fetchCtx, cancel := context.WithCancel(ctx)
	id := s.track(key, cancel)
	s.mu.Unlock()

	page, err := fetcher(fetchCtx)

	s.mu.Lock()
	s.untrack(key, id)
	cancel()
	current := s.generation[key] == gen && s.suspended[key] == 0 && !s.closed
	s.mu.Unlock()

	if !current {
		return nil, fmt.Errorf("%w: %s", ErrStale, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	s.pages.Lock()
	defer s.pages.Unlock()

	// Re-check under the page lock so a suspension that raced the fetch wins
	s.mu.Lock()
	current = s.generation[key] == gen && s.suspended[key] == 0
	s.mu.Unlock()
	if !current {
		return nil, fmt.Errorf("%w: %s", ErrStale, key)
	}

	if err := s.cache.Set(ctx, key, page, 0); err != nil {
		return nil, fmt.Errorf("failed to store page %s: %w", key, err)
	}
	return page, nil
}

// Cancel stops in-flight fetches of key and drops their results
func (s *Store) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key)
}

// Suspend cancels in-flight fetches of keys and keeps fetch results from
// being stored until resume is called. Suspensions nest.
func (s *Store) Suspend(keys []string) (resume func()) {
	s.mu.Lock()
	for _, key := range keys {
		s.suspended[key]++
		s.cancelLocked(key)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.resume(keys) })
	}
}

// IsSuspended reports whether key is suspended
func (s *Store) IsSuspended(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended[key] > 0
}

func (s *Store) resume(keys []string) {
	active := []string{}
	background := []string{}

	s.mu.Lock()
	for _, key := range keys {
		if s.suspended[key]--; s.suspended[key] > 0 {
			continue
		}
		delete(s.suspended, key)
		if p, ok := s.deferred[key]; ok {
			delete(s.deferred, key)
			if p == PriorityActive {
				active = append(active, key)
			} else {
				background = append(background, key)
			}
		}
	}
	s.mu.Unlock()

	s.Revalidate(active, PriorityActive)
	s.Revalidate(background, PriorityBackground)
}

// Revalidate schedules a refetch of keys. Suspended keys are held until
// resumed. Background refetches are de-duplicated and paced.
func (s *Store) Revalidate(keys []string, priority Priority) {
	if len(keys) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, key := range keys {
		if _, ok := s.fetchers[key]; !ok {
			log.Debug("querycache: skipping revalidation of %s, no fetcher", key)
			continue
		}
		if s.suspended[key] > 0 {
			s.deferLocked(key, priority)
			continue
		}
		if priority == PriorityActive {
			s.wg.Add(1)
			go s.refetch(key, PriorityActive)
			continue
		}
		if !s.queued[key] {
			s.queued[key] = true
			s.queue = append(s.queue, key)
		}
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued background refetches
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops the worker, cancels in-flight fetches and drops all pages
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for key := range s.inflight {
		s.cancelLocked(key)
	}
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.cache.Close()
}

// refetch runs a scheduled revalidation. One that meets a suspension is
// held until the key is resumed instead of being dropped.
func (s *Store) refetch(key string, priority Priority) {
	defer s.wg.Done()
	_, err := s.Fetch(s.ctx, key)
	switch {
	case err == nil, errors.Is(err, ErrClosed):
		return
	case errors.Is(err, ErrSuspended), errors.Is(err, ErrStale):
		s.mu.Lock()
		suspended := s.suspended[key] > 0
		if suspended {
			s.deferLocked(key, priority)
		}
		s.mu.Unlock()
		if !suspended && errors.Is(err, ErrSuspended) {
			// resumed between the attempt and now
			s.Revalidate([]string{key}, priority)
		}
	default:
		log.Warn("querycache: revalidation of %s failed: %v", key, err)
	}
}

// deferLocked holds a revalidation of a suspended key, keeping the more
// urgent priority. Must be called with s.mu held.
func (s *Store) deferLocked(key string, priority Priority) {
	if p, ok := s.deferred[key]; !ok || priority < p {
		s.deferred[key] = priority
	}
}

func (s *Store) worker() {
	defer s.wg.Done()
	for {
		if s.Pending() == 0 {
			select {
			case <-s.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}

		// Keys stay de-duplicated while they wait for a token
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
		key, ok := s.dequeue()
		if !ok {
			continue
		}
		s.wg.Add(1)
		s.refetch(key, PriorityBackground)
	}
}

func (s *Store) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	key := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, key)
	return key, true
}

// track records an in-flight fetch. Must be called with s.mu held.
func (s *Store) track(key string, cancel context.CancelFunc) uint64 {
	s.nextID++
	if s.inflight[key] == nil {
		s.inflight[key] = make(map[uint64]context.CancelFunc)
	}
	s.inflight[key][s.nextID] = cancel
	return s.nextID
}

// untrack must be called with s.mu held
func (s *Store) untrack(key string, id uint64) {
	delete(s.inflight[key], id)
	if len(s.inflight[key]) == 0 {
		delete(s.inflight, key)
	}
}

// cancelLocked must be called with s.mu held
func (s *Store) cancelLocked(key string) {
	s.generation[key]++
	for _, cancel := range s.inflight[key] {
		cancel()
	}
}
