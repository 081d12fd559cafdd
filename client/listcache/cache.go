// Package listcache keeps the page a client is displaying in sync with the server:
// search changes are debounced, page changes are fetched at once, responses to superseded
// queries are dropped and change notifications are merged into the page by id.
package listcache

import (
	"context"
	"sync"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/sdoims/core/resource"
)

// DefaultDebounce is the quiet period after the last search change before the query is sent.
const DefaultDebounce = 500 * time.Millisecond

// Fetcher runs one list query against the server.
type Fetcher[T resource.Record] func(ctx context.Context, q resource.Query) (resource.Page[T], error)

// Options tune a Cache. The zero value is usable.
type Options[T resource.Record] struct {
	Debounce time.Duration
	// OnChange receives the page every time it is replaced or an entry is merged.
	OnChange func(page resource.Page[T])
	// OnError receives the errors of queries that were still current when they failed.
	OnError func(err error)
}

// Cache is safe for concurrent use. Callbacks run outside of its lock.
type Cache[T resource.Record] struct {
	fetch Fetcher[T]
	opts  Options[T]

	mu      sync.Mutex
	page    resource.Page[T]
	query   resource.Query
	pending *string // search term waiting for the debounce timer
	timer   *time.Timer
	seq     uint64
	cancel  context.CancelFunc
	closed  bool

	inflight sync.WaitGroup
}

// New returns a Cache seeded with the page q was answered with.
func New[T resource.Record](initial resource.Page[T], q resource.Query, fetch Fetcher[T], opts Options[T]) *Cache[T] {
	vala.BeginValidation().Validate(
		vala.IsNotNil(fetch, "fetch"),
	).CheckAndPanic()

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	q.Normalize()
	if q.Page < 1 {
		q.Page = 1
	}
	return &Cache[T]{fetch: fetch, opts: opts, page: initial, query: q}
}

// Page returns the page currently held.
func (c *Cache[T]) Page() resource.Page[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Query returns the query the held page answers, or will answer once in flight results land.
func (c *Cache[T]) Query() resource.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Search schedules a query for term on page 1 once the debounce period passes without another change.
func (c *Cache[T]) Search(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending = &term
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
}

func (c *Cache[T]) flush() {
	c.mu.Lock()
	if c.closed || c.pending == nil {
		c.mu.Unlock()
		return
	}
	q := c.query
	q.Search = *c.pending
	q.Page = 1
	c.pending = nil
	c.issue(q)
	c.mu.Unlock()
}

// GoTo fetches page n at once. A search still waiting for its debounce is sent along with it.
func (c *Cache[T]) GoTo(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	q := c.query
	if c.pending != nil {
		q.Search = *c.pending
		c.pending = nil
		c.timer.Stop()
	}
	q.Page = n
	c.issue(q)
}

// Refresh fetches the current query again.
func (c *Cache[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.issue(c.query)
}

// issue starts q as the newest query. Older queries still in flight are cancelled and their results dropped.
// c.mu must be held.
func (c *Cache[T]) issue(q resource.Query) {
	q.Normalize()
	c.query = q
	c.seq++
	seq := c.seq

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		page, err := c.fetch(ctx, q)
		c.land(seq, page, err)
	}()
}

func (c *Cache[T]) land(seq uint64, page resource.Page[T], err error) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return // superseded
	}
	if err != nil {
		c.mu.Unlock()
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
		return
	}
	c.page = page
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(page)
	}
}

// Merge replaces the held entry with rec's id. Records not on the page are ignored, never inserted.
func (c *Cache[T]) Merge(rec T) bool {
	c.mu.Lock()
	idx := -1
	for i, r := range c.page.Data {
		if r.GetID() == rec.GetID() {
			idx = i
			break
		}
	}
	if c.closed || idx < 0 {
		c.mu.Unlock()
		return false
	}

	data := make([]T, len(c.page.Data))
	copy(data, c.page.Data)
	data[idx] = rec
	c.page.Data = data
	page := c.page
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(page)
	}
	return true
}

// Wait blocks until every query issued so far has returned.
func (c *Cache[T]) Wait() {
	c.inflight.Wait()
}

// Close stops the debounce timer and drops every result still to come.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
}
