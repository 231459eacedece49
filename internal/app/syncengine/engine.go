package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/metrics"
	"github.com/PabloGalante/chatsync/internal/observability"
)

type State int

const (
	Cold State = iota // no subscription open
	Live              // subscription open (possibly stale)
)

func (s State) String() string {
	if s == Live {
		return "live"
	}
	return "cold"
}

// View is what the engine publishes for rendering.
type View struct {
	Messages []domain.Message
	// Stale is set when the subscription stopped delivering; Messages is the
	// last known stream.
	Stale bool
}

type Options struct {
	// ResubscribeDelay > 0 reopens a failed subscription after this delay,
	// retrying at the same pace while Subscribe itself keeps failing.
	// Zero leaves the engine Live with a stale view.
	ResubscribeDelay time.Duration
	Logger           *slog.Logger
}

// Engine owns the authoritative in-memory message stream. It hydrates from
// the local cache, then replaces the stream with every remote snapshot and
// writes it through to the cache.
type Engine struct {
	cache  domain.LocalCache
	remote domain.RemoteMessageStore
	opts   Options
	log    *slog.Logger

	// publishMu orders mutation+notification pairs; mu guards the fields.
	publishMu sync.Mutex
	mu        sync.Mutex

	state    State
	gen      uint64 // bumped on every activation and deactivation
	runCtx   context.Context
	cancel   context.CancelFunc
	sub      domain.Subscription
	messages []domain.Message
	stale    bool

	nextObserver int
	observers    map[int]func(View)
}

func New(cache domain.LocalCache, remote domain.RemoteMessageStore, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = observability.Component("syncengine")
	}
	return &Engine{
		cache:     cache,
		remote:    remote,
		opts:      opts,
		log:       log,
		messages:  []domain.Message{},
		observers: make(map[int]func(View)),
	}
}

// Activate moves Cold → Live: it publishes the cached stream, then opens the
// remote subscription. Calling it on a Live engine does nothing.
//
// If Deactivate runs while the cache is loading, Activate returns nil without
// subscribing. A failure to open the subscription returns the engine to Cold.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	if e.state == Live {
		e.mu.Unlock()
		return nil
	}
	e.state = Live
	e.gen++
	gen := e.gen
	e.runCtx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	runCtx := e.runCtx
	e.mu.Unlock()

	log := e.log.With("generation", gen)
	log.Info("activating")

	cached := e.cache.Load(ctx)
	if !e.publish(gen, func() {
		e.messages = cached
		e.stale = false
	}) {
		log.Info("deactivated during cache load")
		return nil
	}
	log.Info("published cached view", "message_count", len(cached))

	if err := e.subscribe(runCtx, gen); err != nil {
		e.mu.Lock()
		if e.gen == gen {
			e.state = Cold
			e.gen++
			e.cancel()
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// Deactivate moves Live → Cold and closes the subscription. The last view
// stays readable. Safe to call at any time, any number of times.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	if e.state == Cold {
		e.mu.Unlock()
		return
	}
	e.state = Cold
	e.gen++
	if e.cancel != nil {
		e.cancel()
	}
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	e.log.Info("deactivated")
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// View returns a copy of the current view.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Observe registers fn to receive every published view, starting with the
// current one. The returned func removes it. Views arrive one at a time in
// publication order; fn must not call Observe.
func (e *Engine) Observe(fn func(View)) (cancel func()) {
	e.publishMu.Lock()
	e.mu.Lock()
	id := e.nextObserver
	e.nextObserver++
	e.observers[id] = fn
	current := e.viewLocked()
	e.mu.Unlock()
	fn(current)
	e.publishMu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

func (e *Engine) viewLocked() View {
	return View{Messages: domain.CloneMessages(e.messages), Stale: e.stale}
}

// publish applies mutate if gen is still current and notifies observers.
// It reports whether gen was current.
func (e *Engine) publish(gen uint64, mutate func()) bool {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return false
	}
	mutate()
	view := e.viewLocked()
	observers := make([]func(View), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	metrics.ViewMessages.Set(float64(len(view.Messages)))
	for _, fn := range observers {
		fn(view)
	}
	return true
}

func (e *Engine) subscribe(ctx context.Context, gen uint64) error {
	sub, err := e.remote.Subscribe(ctx,
		func(msgs []domain.Message) { e.onSnapshot(gen, msgs) },
		func(err error) { e.onSubscriptionError(gen, err) },
	)
	if err != nil {
		e.log.Error("subscribe failed", "generation", gen, "error", err)
		return fmt.Errorf("subscribe: %w", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	old := e.sub
	e.sub = sub
	e.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	e.log.Info("subscribed", "generation", gen)
	return nil
}

// onSnapshot replaces the stream verbatim: the store already orders it.
func (e *Engine) onSnapshot(gen uint64, msgs []domain.Message) {
	snapshot := domain.CloneMessages(msgs)
	if !e.publish(gen, func() {
		e.messages = snapshot
		e.stale = false
	}) {
		return
	}

	metrics.SnapshotsReceived.Inc()
	e.log.Debug("snapshot applied", "generation", gen, "message_count", len(snapshot))
	e.cache.Save(snapshot)
}

func (e *Engine) onSubscriptionError(gen uint64, err error) {
	metrics.SubscriptionErrors.Inc()
	if !e.publish(gen, func() { e.stale = true }) {
		return
	}
	e.log.Warn("subscription lost, view is stale", "generation", gen, "error", err)

	if e.opts.ResubscribeDelay <= 0 {
		return
	}

	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()
	go e.resubscribeLoop(ctx, gen)
}

func (e *Engine) resubscribeLoop(ctx context.Context, gen uint64) {
	timer := time.NewTimer(e.opts.ResubscribeDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		e.log.Info("resubscribing", "generation", gen)
		if err := e.subscribe(ctx, gen); err == nil {
			return
		}
		timer.Reset(e.opts.ResubscribeDelay)
	}
}
