package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/cache"
	"github.com/codewandler/pactor/core/journal"
	"github.com/codewandler/pactor/core/perkey"
	"github.com/codewandler/pactor/core/sf"
	"github.com/codewandler/pactor/ports/kv"
)

type (
	OnPanic func(recovered any, stack []byte, id actor.AnyID)
	OnError func(err *RuntimeError)

	Options struct {
		// Store holds actor storage and replay cursors. Defaults to an
		// in-memory store.
		Store   kv.Store
		Logger  *slog.Logger
		Metrics Metrics
		// CacheSize is the per-actor LRU size. Zero selects the default,
		// a negative value disables caching.
		CacheSize int
		// PollInterval bounds how long Serve waits before looking for
		// entries appended by other processes.
		PollInterval time.Duration
		// MaxErrors caps how many failures Errors keeps.
		MaxErrors int
		OnPanic   OnPanic
		OnError   OnError
	}
)

type instance struct {
	id    actor.AnyID
	value any
	log   journal.Log
	cache cache.Cache
	wake  chan struct{}

	// owned by the instance's scheduler worker
	started bool

	cursor  atomic.Uint64
	stalled atomic.Pointer[RuntimeError]
}

func (i *instance) Cursor() journal.Index { return journal.Index(i.cursor.Load()) }

// Runtime hosts actors, drives their logs and applies the effects of their
// handlers. Each actor is processed by at most one goroutine at a time;
// different actors progress in parallel.
type Runtime struct {
	opts    Options
	log     *slog.Logger
	metrics Metrics
	table   *actor.Table
	store   kv.Store
	loads   sf.Group[kv.Entry]
	sched   *perkey.Scheduler[actor.AnyID]

	mu        sync.RWMutex
	actors    map[actor.AnyID]*instance
	order     []*instance
	instances uint32

	errMu   sync.Mutex
	errs    []*RuntimeError
	dropped int
}

func New(opts Options) *Runtime {
	if opts.Store == nil {
		opts.Store = kv.NewMemStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 1024
	}
	if opts.OnPanic == nil {
		opts.OnPanic = func(recovered any, stack []byte, id actor.AnyID) {
			opts.Logger.Error("handler panicked", slog.String("actor", id.String()), slog.Any("recovered", recovered), slog.String("stack", string(stack)))
		}
	}
	if opts.OnError == nil {
		opts.OnError = func(*RuntimeError) {}
	}

	return &Runtime{
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
		table:   actor.NewTable(),
		store:   opts.Store,
		sched:   perkey.New[actor.AnyID](),
		actors:  make(map[actor.AnyID]*instance),
	}
}

// DispatchTable lets the runtime be passed to actor.RegisterActor and
// friends.
func (r *Runtime) DispatchTable() *actor.Table { return r.table }

// AddActor hosts a, reading its messages from log. A's kind must be
// registered; adding an unregistered kind panics. Instance numbers are
// assigned in call order starting at 1, so a program that adds its actors
// in the same order gets the same identities on every start.
func AddActor[A actor.Actor](r *Runtime, a A, log journal.Log) actor.ID[A] {
	kind := actor.KindOf[A]()
	if !r.table.IsRegistered(kind) {
		panic(fmt.Sprintf("runtime: actor kind %s is not registered", kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances++
	id := actor.AnyID{Kind: kind, Instance: r.instances}
	var c cache.Cache = cache.NewNop()
	if r.opts.CacheSize >= 0 {
		c = cache.NewLRU(cache.LRUOpts{Size: r.opts.CacheSize})
	}
	inst := &instance{
		id:    id,
		value: a,
		log:   log,
		cache: c,
		wake:  make(chan struct{}, 1),
	}
	r.actors[id] = inst
	r.order = append(r.order, inst)

	typed, _ := actor.Downcast[A](id)
	return typed
}

func (r *Runtime) instance(id actor.AnyID) (*instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.actors[id]
	return inst, ok
}

func (r *Runtime) snapshot() []*instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*instance(nil), r.order...)
}

// Cursor returns the index of the next entry id will process.
func (r *Runtime) Cursor(id actor.Addressable) (journal.Index, bool) {
	inst, ok := r.instance(id.Any())
	if !ok {
		return journal.Zero, false
	}
	return inst.Cursor(), true
}

// Stalled returns the failure an actor is stuck on, if any.
func (r *Runtime) Stalled(id actor.Addressable) *RuntimeError {
	inst, ok := r.instance(id.Any())
	if !ok {
		return nil
	}
	return inst.stalled.Load()
}

// Errors returns the most recent failures, oldest first.
func (r *Runtime) Errors() []*RuntimeError {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return append([]*RuntimeError(nil), r.errs...)
}

func (r *Runtime) errorMark() int {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.dropped + len(r.errs)
}

func (r *Runtime) errorsSince(mark int) error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	start := max(mark-r.dropped, 0)
	var errs []error
	for _, e := range r.errs[start:] {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Close stops the runtime's workers. It must not be called while Run or
// Serve are active.
func (r *Runtime) Close() { r.sched.Close() }

// Run starts every actor, then replays their logs until no actor makes
// progress. Per-invocation failures do not stop the run; they are joined
// into the returned error and remain available through Errors.
func (r *Runtime) Run(ctx context.Context) error {
	log := r.log.With(slog.String("run", gonanoid.Must(8)))
	mark := r.errorMark()
	started := time.Now()

	log.Info("run started", slog.Int("actors", len(r.snapshot())))
	if err := r.startAll(ctx); err != nil {
		return err
	}

	rounds := 0
	for {
		progressed, err := r.round(ctx)
		if err != nil {
			return err
		}
		rounds++
		if !progressed {
			break
		}
	}

	failed := r.errorsSince(mark)
	log.Info("run idle",
		slog.Int("rounds", rounds),
		slog.Duration("took", time.Since(started)),
		slog.Bool("failures", failed != nil),
	)
	return failed
}

// Step performs at most one unit of work for id: its init if it has not
// started yet, otherwise the next entry of its log. It reports whether the
// actor made progress.
func (r *Runtime) Step(ctx context.Context, id actor.Addressable) (bool, error) {
	inst, ok := r.instance(id.Any())
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownActor, id.Any())
	}
	var (
		progressed bool
		stepErr    error
	)
	err := r.sched.DoContext(ctx, inst.id, func() error {
		progressed, stepErr = r.step(ctx, inst)
		return nil
	})
	if err != nil {
		return false, err
	}
	return progressed, stepErr
}

// Serve starts every actor and keeps their logs drained until ctx is done.
// An actor is woken when this runtime appends to its log and at least
// every PollInterval. Failures are reported through OnError and Errors.
func (r *Runtime) Serve(ctx context.Context) error {
	log := r.log.With(slog.String("run", gonanoid.Must(8)))
	log.Info("serving", slog.Int("actors", len(r.snapshot())), slog.Duration("poll", r.opts.PollInterval))

	if err := r.startAll(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range r.snapshot() {
		g.Go(func() error { return r.serveActor(gctx, inst) })
	}
	err := g.Wait()
	log.Info("serve stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runtime) serveActor(ctx context.Context, inst *instance) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		err := r.sched.DoContext(ctx, inst.id, func() error {
			r.drain(ctx, inst)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.reportLag(ctx, inst)

		select {
		case <-ctx.Done():
			return nil
		case <-inst.wake:
		case <-ticker.C:
		}
	}
}

// Compact trims every actor's log up to the entry it will process next.
// Entries an actor has not committed yet are never trimmed.
func (r *Runtime) Compact(ctx context.Context) error {
	var errs []error
	for _, inst := range r.snapshot() {
		err := r.sched.DoContext(ctx, inst.id, func() error {
			cur := inst.Cursor()
			if cur == journal.Zero {
				return nil
			}
			return inst.log.Trim(ctx, inst.id, cur)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("compact %s: %w", inst.id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) startAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range r.snapshot() {
		g.Go(func() error {
			return r.sched.DoContext(gctx, inst.id, func() error {
				_, _ = r.start(gctx, inst)
				return nil
			})
		})
	}
	return g.Wait()
}

func (r *Runtime) round(ctx context.Context) (bool, error) {
	var progressed atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for _, inst := range r.snapshot() {
		g.Go(func() error {
			return r.sched.DoContext(gctx, inst.id, func() error {
				if r.drain(gctx, inst) > 0 {
					progressed.Store(true)
				}
				r.reportLag(gctx, inst)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return progressed.Load(), ctx.Err()
}

// drain steps inst until it runs out of entries or fails. It must run on
// inst's scheduler worker.
func (r *Runtime) drain(ctx context.Context, inst *instance) int {
	n := 0
	for ctx.Err() == nil {
		ok, _ := r.step(ctx, inst)
		if !ok {
			break
		}
		n++
	}
	return n
}

func cursorKey(id actor.AnyID) string {
	return actor.ReservedPrefix + "cursor/" + string(id.Kind) + "/" + strconv.FormatUint(uint64(id.Instance), 10)
}

func initSeed(id actor.AnyID) string { return "init/" + id.String() }

// start runs inst's init unless a committed cursor shows it already ran.
func (r *Runtime) start(ctx context.Context, inst *instance) (bool, error) {
	if inst.started {
		return false, nil
	}
	if inst.stalled.Load() != nil {
		return false, nil
	}

	cur, err := kv.Get[journal.Index](ctx, r.store, cursorKey(inst.id))
	switch {
	case err == nil:
		inst.cursor.Store(uint64(cur))
		inst.started = true
		r.log.Debug("actor resumed", slog.String("actor", inst.id.String()), slog.Uint64("cursor", cur.Uint64()))
		return false, nil
	case !errors.Is(err, kv.ErrNotFound):
		return false, r.fail(ctx, inst, &RuntimeError{
			Index:    journal.Zero,
			Init:     true,
			Category: CategoryStorage,
			Retry:    true,
			Err:      fmt.Errorf("%w: read cursor: %w", actor.ErrDb, err),
		})
	}

	seed := initSeed(inst.id)
	cx, eff, err := r.invoke(ctx, inst, seed, nil)
	if err != nil {
		cx.Discard()
		return false, r.fail(ctx, inst, &RuntimeError{Init: true, Category: classify(err), Err: err})
	}
	if err := r.apply(ctx, inst, eff, seed, journal.Zero); err != nil {
		cx.Discard()
		err.Init = true
		return false, r.fail(ctx, inst, err)
	}
	inst.started = true
	r.log.Debug("actor initialized", slog.String("actor", inst.id.String()))
	return true, nil
}

// step performs one unit of work for inst. It must run on inst's
// scheduler worker.
func (r *Runtime) step(ctx context.Context, inst *instance) (bool, error) {
	if inst.stalled.Load() != nil {
		return false, nil
	}
	if !inst.started {
		return r.start(ctx, inst)
	}

	idx := inst.Cursor()
	e, err := inst.log.Read(ctx, inst.id, idx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, r.fail(ctx, inst, &RuntimeError{
			Index:    idx,
			Category: CategoryLog,
			Retry:    !errors.Is(err, journal.ErrTrimmed),
			Err:      err,
		})
	}
	if e == nil {
		return false, nil
	}

	cx, eff, err := r.invoke(ctx, inst, e.ID, e)
	if err != nil {
		cx.Discard()
		return false, r.fail(ctx, inst, &RuntimeError{Index: idx, Category: classify(err), Err: err})
	}
	if rerr := r.apply(ctx, inst, eff, e.ID, e.Next()); rerr != nil {
		cx.Discard()
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		rerr.Index = idx
		return false, r.fail(ctx, inst, rerr)
	}
	return true, nil
}

// invoke runs one handler inside a recover boundary.
func (r *Runtime) invoke(ctx context.Context, inst *instance, seed string, e *journal.Entry) (cx *actor.Context, eff *actor.Effects, err error) {
	kind := string(inst.id.Kind)
	msgKind := "init"
	cfg := actor.ContextConfig{
		Self:   inst.id,
		Seed:   seed,
		Load:   r.load,
		Cache:  inst.cache,
		Router: r.table,
		Logger: r.log,
		OnCacheLookup: func(hit bool) {
			r.metrics.CacheLookup(kind, hit)
		},
	}
	if e != nil {
		cfg.Sender = e.From
		msgKind = string(e.Message.Kind)
	}
	cx = actor.NewContext(ctx, cfg)

	timer := r.metrics.DispatchDuration(kind, msgKind)
	defer timer.ObserveDuration()
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.DispatchPanic(kind, msgKind)
			r.opts.OnPanic(rec, debug.Stack(), inst.id)
			eff, err = nil, panicErr(rec)
		}
		outcome := "ok"
		if err != nil {
			outcome = classify(err).String()
		}
		r.metrics.DispatchCompleted(kind, msgKind, outcome)
	}()

	if e == nil {
		eff, err = r.table.DispatchInit(inst.id.Kind, inst.value, cx)
	} else {
		eff, err = r.table.DispatchHandler(inst.id.Kind, inst.value, cx, e.Message)
	}
	return cx, eff, err
}

// panicErr keeps an error payload in the chain so a handler that panics
// with a storage or dispatch error is still classified by it.
func panicErr(rec any) error {
	if e, ok := rec.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, e)
	}
	return fmt.Errorf("%w: %v", ErrPanic, rec)
}
