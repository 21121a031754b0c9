// Package cache keeps server resources addressed by key.
//
// Readers get the last known value immediately while a fetch runs in the background.
// Fetches for the same key are de-duplicated, and every fetch carries a per-key sequence
// number so a response that lands after a newer one (or after a local write) is dropped.
package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Resource is a read-only snapshot of one cache slot.
type Resource[T any] struct {
	Key     string
	Value   T
	Present bool
	Status  Status
	// Err is the last fetch error. The previous value is kept alongside it.
	Err           error
	LastFetchedAt time.Time
	// Validating is true while at least one fetch for the key is in flight.
	Validating bool
	// Unconfirmed is true when Value was written by Mutate and no later fetch has been applied.
	Unconfirmed bool
}

// Fetcher loads the current server state for key.
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

type Option func(*options)

type options struct {
	dedupe time.Duration
	now    func() time.Time
}

// WithDedupeInterval makes Get skip fetching when the key was fetched successfully less than d ago.
func WithDedupeInterval(d time.Duration) Option {
	return func(o *options) {
		o.dedupe = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

type subscription[T any] struct {
	mu     sync.Mutex
	active bool
	fn     func(Resource[T])
}

// flight is one issued fetch. Its sequence number is fixed when it is issued.
type flight[T any] struct {
	name  string
	seq   uint64
	once  sync.Once
	value T
	err   error
}

type slot[T any] struct {
	res      Resource[T]
	issued   uint64
	applied  uint64
	inflight int
	current  *flight[T]
	subs     map[uint64]*subscription[T]
}

type Cache[T any] struct {
	ctx    context.Context
	fetch  Fetcher[T]
	logger *zap.Logger
	opts   options

	group singleflight.Group

	// notifyMu keeps subscriber notifications in the order state changes were made.
	notifyMu sync.Mutex
	mu       sync.Mutex
	slots    map[string]*slot[T]
	subSeq   atomic.Uint64
}

func New[T any](ctx context.Context, fetch Fetcher[T], logger *zap.Logger, opts ...Option) *Cache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[T]{
		ctx:    ctx,
		fetch:  fetch,
		logger: logger,
		opts:   o,
		slots:  make(map[string]*slot[T]),
	}
}

// slot returns the slot for key, creating it in loading state. c.mu must be held.
func (c *Cache[T]) slot(key string) *slot[T] {
	s, ok := c.slots[key]
	if !ok {
		s = &slot[T]{
			res:  Resource[T]{Key: key, Status: StatusLoading},
			subs: make(map[uint64]*subscription[T]),
		}
		c.slots[key] = s
	}
	return s
}

func (c *Cache[T]) snapshot(s *slot[T]) Resource[T] {
	res := s.res
	res.Validating = s.inflight > 0
	return res
}

// Peek returns the current snapshot without triggering a fetch.
func (c *Cache[T]) Peek(key string) Resource[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[key]; ok {
		return c.snapshot(s)
	}
	return Resource[T]{Key: key, Status: StatusLoading}
}

// Get returns the current snapshot, stale or not, and starts a background fetch
// unless one is already in flight for the key.
func (c *Cache[T]) Get(key string) Resource[T] {
	c.mu.Lock()
	s := c.slot(key)
	res := c.snapshot(s)
	fresh := c.opts.dedupe > 0 &&
		s.res.Status == StatusReady &&
		c.opts.now().Sub(s.res.LastFetchedAt) < c.opts.dedupe
	c.mu.Unlock()

	if !fresh {
		c.start(key, false)
	}

	return res
}

// Load is Get followed by waiting for the shared in-flight fetch.
func (c *Cache[T]) Load(ctx context.Context, key string) (Resource[T], error) {
	c.mu.Lock()
	s := c.slot(key)
	fresh := c.opts.dedupe > 0 &&
		s.res.Status == StatusReady &&
		c.opts.now().Sub(s.res.LastFetchedAt) < c.opts.dedupe
	c.mu.Unlock()

	if fresh {
		return c.Peek(key), nil
	}

	select {
	case <-ctx.Done():
		return c.Peek(key), ctx.Err()
	case result := <-c.start(key, false):
		return c.Peek(key), result.Err
	}
}

// Revalidate forces a new fetch for key even if one is in flight.
// The returned channel receives the outcome of that fetch.
func (c *Cache[T]) Revalidate(key string) <-chan error {
	ch := c.start(key, true)

	out := make(chan error, 1)
	go func() {
		defer close(out)
		out <- (<-ch).Err
	}()

	return out
}

// Mutate overwrites the value of key locally and returns the snapshot taken before the write.
// Fetches issued before the write can no longer overwrite it.
func (c *Cache[T]) Mutate(key string, updater func(current T, present bool) T) Resource[T] {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	s := c.slot(key)
	prev := c.snapshot(s)

	s.res.Value = updater(s.res.Value, s.res.Present)
	s.res.Present = true
	s.res.Unconfirmed = true
	if s.res.Status == StatusLoading {
		s.res.Status = StatusReady
	}
	s.applied = s.issued

	res := c.snapshot(s)
	subs := activeSubs(s)
	c.mu.Unlock()

	c.logger.Debug("cache value mutated locally", zap.String("key", key))
	notify(subs, res)

	return prev
}

// Restore puts a snapshot taken by Mutate back in place. Fetches issued before the call are dropped,
// so a restored Unconfirmed value needs a new Revalidate to be reconciled.
func (c *Cache[T]) Restore(key string, prev Resource[T]) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	s := c.slot(key)
	s.res.Value = prev.Value
	s.res.Present = prev.Present
	s.res.Status = prev.Status
	s.res.Err = prev.Err
	s.res.LastFetchedAt = prev.LastFetchedAt
	s.res.Unconfirmed = prev.Unconfirmed
	s.applied = s.issued

	res := c.snapshot(s)
	subs := activeSubs(s)
	c.mu.Unlock()

	c.logger.Debug("cache value restored", zap.String("key", key))
	notify(subs, res)
}

// Subscribe registers fn for state changes of key and revalidates it.
// After the returned function is called fn is never invoked again, even for fetches still in flight.
// fn must not write to the cache or unsubscribe itself.
func (c *Cache[T]) Subscribe(key string, fn func(Resource[T])) (unsubscribe func()) {
	sub := &subscription[T]{active: true, fn: fn}
	id := c.subSeq.Add(1)

	c.mu.Lock()
	c.slot(key).subs[id] = sub
	c.mu.Unlock()

	c.Get(key)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()

			c.mu.Lock()
			if s, ok := c.slots[key]; ok {
				delete(s.subs, id)
			}
			c.mu.Unlock()
		})
	}
}

// start issues a fetch for key, or joins the one in flight unless force is set.
func (c *Cache[T]) start(key string, force bool) <-chan singleflight.Result {
	c.mu.Lock()
	s := c.slot(key)
	f := s.current
	if force || f == nil {
		s.issued++
		s.inflight++
		f = &flight[T]{name: key + "#" + strconv.FormatUint(s.issued, 10), seq: s.issued}
		s.current = f
	}
	c.mu.Unlock()

	return c.group.DoChan(f.name, func() (interface{}, error) {
		return c.run(key, f)
	})
}

// run fetches once per flight. A joiner arriving after the flight left the group gets the stored result.
func (c *Cache[T]) run(key string, f *flight[T]) (T, error) {
	f.once.Do(func() {
		c.logger.Debug("fetch started", zap.String("key", key), zap.Uint64("seq", f.seq))

		f.value, f.err = c.fetch(c.ctx, key)
		c.apply(key, f)
	})

	return f.value, f.err
}

func (c *Cache[T]) apply(key string, f *flight[T]) {
	seq, value, err := f.seq, f.value, f.err

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	s := c.slot(key)
	s.inflight--
	if s.current == f {
		s.current = nil
	}

	if seq <= s.applied {
		res := c.snapshot(s)
		subs := activeSubs(s)
		applied := s.applied
		c.mu.Unlock()

		c.logger.Debug("stale fetch result discarded",
			zap.String("key", key),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", applied),
		)
		notify(subs, res)
		return
	}

	s.applied = seq
	if err != nil {
		s.res.Status = StatusError
		s.res.Err = err
	} else {
		s.res.Value = value
		s.res.Present = true
		s.res.Status = StatusReady
		s.res.Err = nil
		s.res.Unconfirmed = false
		s.res.LastFetchedAt = c.opts.now()
	}

	res := c.snapshot(s)
	subs := activeSubs(s)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("fetch failed, keeping previous value",
			zap.String("key", key),
			zap.Bool("has_value", res.Present),
			zap.Error(err),
		)
	} else {
		c.logger.Debug("fetch applied", zap.String("key", key), zap.Uint64("seq", seq))
	}

	notify(subs, res)
}

func activeSubs[T any](s *slot[T]) []*subscription[T] {
	subs := make([]*subscription[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs
}

func notify[T any](subs []*subscription[T], res Resource[T]) {
	for _, sub := range subs {
		sub.mu.Lock()
		if sub.active {
			sub.fn(res)
		}
		sub.mu.Unlock()
	}
}
