package asyncload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l1jgo/worldsingleton/internal/class"
	coresys "github.com/l1jgo/worldsingleton/internal/core/system"
	"github.com/l1jgo/worldsingleton/internal/host"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("asyncload: queue full")
	ErrClosed    = errors.New("asyncload: loader closed")
)

// LoadFunc performs the blocking part of loading path, such as reading the
// package that defines it. It runs on a worker goroutine and must not touch
// game-thread state.
type LoadFunc func(ctx context.Context, path string) error

// Callback receives the resolved class, or nil when resolution failed.
type Callback func(cls *class.Class)

// Creator builds instances through the singleton system's construction
// hooks. *singleton.System implements it.
type Creator interface {
	CreateInstance(ctx host.Context, base, sub *class.Class) *host.Object
}

// Handle tracks one request.
type Handle struct {
	id       uint64
	path     string
	priority int

	canceled atomic.Bool
	done     atomic.Bool
}

func (h *Handle) ID() uint64     { return h.id }
func (h *Handle) Path() string   { return h.path }
func (h *Handle) Priority() int  { return h.priority }
func (h *Handle) Canceled() bool { return h.canceled.Load() }

// Cancel drops the callback. A request already being loaded finishes its
// load but is not delivered.
func (h *Handle) Cancel() { h.canceled.Store(true) }

// Done reports whether the request has been delivered or dropped.
func (h *Handle) Done() bool { return h.done.Load() }

type request struct {
	ctx         context.Context
	handle      *Handle
	cb          Callback
	skipInvalid bool
	seq         uint64
	err         error
}

// Options configures a Loader.
type Options struct {
	Classes   *class.Table
	Load      LoadFunc // nil: paths are ready immediately
	Creator   Creator  // needed by AsyncCreate only
	Workers   int
	QueueSize int
	Metrics   *Metrics
	Log       *zap.Logger
}

// Loader resolves soft class paths in the background. Loads run on worker
// goroutines, highest priority first; callbacks run on the game thread
// when Drain is called.
type Loader struct {
	classes   *class.Table
	load      LoadFunc
	creator   Creator
	workers   int
	queueSize int
	metrics   *Metrics
	log       *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    requestQueue
	finished []*request
	closed   bool
	started  bool
	seq      uint64
	wg       sync.WaitGroup

	stopCh    chan struct{}
	closeOnce sync.Once

	nextID atomic.Uint64
}

func NewLoader(opts Options) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	l := &Loader{
		classes:   opts.Classes,
		load:      opts.Load,
		creator:   opts.Creator,
		workers:   opts.Workers,
		queueSize: opts.QueueSize,
		metrics:   opts.Metrics,
		log:       opts.Log,
		queue:     make(requestQueue, 0, opts.QueueSize),
		stopCh:    make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start launches the workers. They exit when ctx is done or Close is
// called. Calling Start twice is a no-op.
func (l *Loader) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.closed {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.work(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
			l.shutdown()
		case <-l.stopCh:
		}
	}()
	l.log.Info("async loader started", zap.Int("workers", l.workers), zap.Int("queue", l.queueSize))
}

// Close stops the workers and waits for them. Requests still queued are
// never delivered.
func (l *Loader) Close() {
	l.closeOnce.Do(func() { close(l.stopCh) })
	l.shutdown()
	l.wg.Wait()
}

func (l *Loader) shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// AsyncLoad queues path for loading. cb runs on the game thread during a
// later Drain with the resolved class, or nil when the path does not name
// a known class; with skipInvalid set, failures are not delivered at all.
func (l *Loader) AsyncLoad(ctx context.Context, path string, cb Callback, skipInvalid bool, priority int) (*Handle, error) {
	h := &Handle{id: l.nextID.Add(1), path: path, priority: priority}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if len(l.queue) >= l.queueSize {
		l.mu.Unlock()
		l.log.Warn("async load queue full", zap.String("path", path))
		return nil, ErrQueueFull
	}
	l.seq++
	l.queue.push(&request{ctx: ctx, handle: h, cb: cb, skipInvalid: skipInvalid, seq: l.seq})
	l.metrics.QueueDepth.Set(float64(len(l.queue)))
	l.mu.Unlock()
	l.cond.Signal()

	l.metrics.Requests.Inc()
	l.log.Debug("request async load", zap.String("path", path), zap.Int("priority", priority), zap.Uint64("handle", h.id))
	return h, nil
}

// AsyncCreate loads path and then builds an instance of the class it names
// through the Creator, handing the result to cb. base selects the
// construction hook; nil uses the loaded class's own. With a non-nil
// bound, the request belongs to that object: if it is destroyed before
// the load finishes, cb is never called. Returns whether the request was
// queued.
func (l *Loader) AsyncCreate(bound *host.Object, base *class.Class, path string, cb func(*host.Object)) bool {
	if l.creator == nil {
		l.log.Error("async create without a creator", zap.String("path", path))
		return false
	}
	_, err := l.AsyncLoad(context.Background(), path, func(cls *class.Class) {
		if bound != nil && !bound.IsValid() {
			l.log.Debug("async create dropped, bound object destroyed", zap.String("path", path))
			return
		}
		var ctx host.Context
		if bound != nil {
			ctx = bound
		}
		var obj *host.Object
		if cls != nil {
			b := base
			if b == nil {
				b = cls
			}
			obj = l.creator.CreateInstance(ctx, b, cls)
		}
		cb(obj)
	}, false, 0)
	return err == nil
}

func (l *Loader) work(ctx context.Context) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.mu.Unlock()
			return
		}
		r := l.queue.pop()
		l.metrics.QueueDepth.Set(float64(len(l.queue)))
		l.mu.Unlock()

		if !r.handle.Canceled() {
			r.err = l.fetch(ctx, r)
		}

		l.mu.Lock()
		l.finished = append(l.finished, r)
		l.mu.Unlock()
	}
}

func (l *Loader) fetch(ctx context.Context, r *request) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if l.load == nil {
		return nil
	}
	lctx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := l.load(lctx, r.handle.path)
	l.log.Debug("async load finished",
		zap.String("path", r.handle.path),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return err
}

// Ready returns the number of finished requests waiting for Drain.
func (l *Loader) Ready() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.finished)
}

// Pending returns the number of requests waiting for a worker.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain delivers every finished request. Game thread only. Returns the
// number of callbacks run.
func (l *Loader) Drain() int {
	l.mu.Lock()
	batch := l.finished
	l.finished = nil
	l.mu.Unlock()

	delivered := 0
	for _, r := range batch {
		h := r.handle
		switch {
		case h.Canceled():
			l.metrics.Dropped.WithLabelValues("canceled").Inc()
		case r.ctx.Err() != nil:
			l.metrics.Dropped.WithLabelValues("context").Inc()
		default:
			var cls *class.Class
			if r.err == nil && l.classes != nil {
				cls = l.classes.ByPath(h.path)
			}
			if cls == nil {
				l.log.Warn("async load failed", zap.String("path", h.path), zap.Error(r.err))
			}
			if cls == nil && r.skipInvalid {
				l.metrics.Dropped.WithLabelValues("invalid").Inc()
				break
			}
			if r.cb != nil {
				r.cb(cls)
			}
			l.metrics.Delivered.Inc()
			delivered++
		}
		h.done.Store(true)
	}
	return delivered
}

// DrainSystem delivers finished loads at the start of each tick. Phase
// Input.
type DrainSystem struct {
	loader *Loader
}

func NewDrainSystem(l *Loader) *DrainSystem { return &DrainSystem{loader: l} }

func (s *DrainSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *DrainSystem) Update(_ time.Duration) { s.loader.Drain() }
