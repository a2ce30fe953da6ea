package municipality

import (
	"context"
	"sync"
	"time"

	"geoincra-portal/internal/models"
)

const DefaultDebounce = 300 * time.Millisecond

// SearchResult is delivered exactly once per Search call.
type SearchResult struct {
	Query     string
	State     string
	Matches   []models.Municipality
	FromCache bool
	// Superseded is set when a newer Search replaced this one before its
	// answer became current.
	Superseded bool
}

type pendingSearch struct {
	seq   uint64
	query string
	state string
	out   chan SearchResult
}

// Searcher debounces the queries of one autocomplete input so that only
// the latest query after a quiet period reaches the cache.
type Searcher struct {
	cache    *Cache
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	seq     uint64
	pending *pendingSearch
	timer   *time.Timer
	closed  bool
}

func NewSearcher(cache *Cache, debounce time.Duration) *Searcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Searcher{
		cache:    cache,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Search returns a channel that receives one result. Short queries and
// in-process cache hits are answered before Search returns.
func (s *Searcher) Search(query, state string) <-chan SearchResult {
	out := make(chan SearchResult, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		out <- SearchResult{Query: query, State: state, Matches: []models.Municipality{}, Superseded: true}
		return out
	}

	s.seq++
	s.supersedePendingLocked()

	if s.cache.TooShort(query) {
		out <- SearchResult{Query: query, State: state, Matches: []models.Municipality{}}
		return out
	}
	if matches, ok := s.cache.Lookup(query, state); ok {
		out <- SearchResult{Query: query, State: state, Matches: matches, FromCache: true}
		return out
	}

	p := &pendingSearch{seq: s.seq, query: query, state: state, out: out}
	s.pending = p
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(p) })
	return out
}

func (s *Searcher) fire(p *pendingSearch) {
	s.mu.Lock()
	if s.closed || s.pending != p {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	// the lookup itself outlives Close and still fills the cache
	done := make(chan []models.Municipality, 1)
	go func() { done <- s.cache.Search(s.ctx, p.query, p.state) }()

	var matches []models.Municipality
	select {
	case matches = <-done:
	case <-s.ctx.Done():
		p.out <- SearchResult{Query: p.query, State: p.state, Matches: []models.Municipality{}, Superseded: true}
		return
	}

	s.mu.Lock()
	stale := p.seq != s.seq
	s.mu.Unlock()

	p.out <- SearchResult{Query: p.query, State: p.state, Matches: matches, Superseded: stale}
}

func (s *Searcher) supersedePendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		p := s.pending
		s.pending = nil
		p.out <- SearchResult{Query: p.query, State: p.state, Matches: []models.Municipality{}, Superseded: true}
	}
}

// Close stops the debounce timer and supersedes both the pending query and
// any query whose lookup is still running.
func (s *Searcher) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.supersedePendingLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
