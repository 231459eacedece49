package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/metrics"
	"github.com/PabloGalante/chatsync/internal/observability"
)

const (
	DefaultKey          = "chat_messages"
	defaultWriteTimeout = 10 * time.Second
)

// Cache is the best-effort LocalCache over a Backend slot.
//
// Writes go through a single-slot queue drained by one goroutine: a Save
// issued while another snapshot is still pending replaces it, so the backend
// only ever sees complete snapshots in issue order.
type Cache struct {
	backend Backend
	key     string
	log     *slog.Logger

	pending chan []domain.Message
	flush   chan chan struct{}
	stop    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

type Option func(*Cache)

// WithKey overrides the slot name (default "chat_messages").
func WithKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.key = key
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// New starts the writer goroutine. Call Close to stop it.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		key:     DefaultKey,
		log:     observability.Component("cache"),
		pending: make(chan []domain.Message, 1),
		flush:   make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()
	return c
}

// Load returns the cached sequence, or an empty one when the slot is missing,
// unreadable or corrupt. It never fails.
func (c *Cache) Load(ctx context.Context) []domain.Message {
	log := c.log.With("key", c.key)

	data, err := c.backend.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.CacheLoads.WithLabelValues("miss").Inc()
			log.Debug("no cached snapshot")
			return []domain.Message{}
		}
		metrics.CacheLoads.WithLabelValues("error").Inc()
		log.Warn("cache read failed", "error", err)
		return []domain.Message{}
	}

	msgs, err := Decode(data)
	if err != nil {
		metrics.CacheLoads.WithLabelValues("corrupt").Inc()
		log.Warn("discarding corrupt cache snapshot", "error", err, "bytes", len(data))
		return []domain.Message{}
	}

	metrics.CacheLoads.WithLabelValues("hit").Inc()
	log.Debug("loaded cached snapshot", "message_count", len(msgs))
	return msgs
}

// Save queues msgs for writing and returns immediately.
func (c *Cache) Save(msgs []domain.Message) {
	select {
	case <-c.closed:
		c.log.Warn("cache closed, dropping snapshot", "message_count", len(msgs))
		return
	default:
	}

	snapshot := domain.CloneMessages(msgs)
	for {
		select {
		case c.pending <- snapshot:
			return
		default:
		}
		// Slot full: drop the older snapshot and retry.
		select {
		case <-c.pending:
			metrics.CacheWrites.WithLabelValues("coalesced").Inc()
		default:
		}
	}
}

// Flush blocks until every snapshot queued before the call has been written
// (or has failed), or ctx is done.
func (c *Cache) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case c.flush <- ack:
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending snapshot, stops the writer and closes the backend.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.stop)
		<-c.done
		err = c.backend.Close()
	})
	return err
}

func (c *Cache) run() {
	defer close(c.done)
	for {
		select {
		case msgs := <-c.pending:
			c.write(msgs)
		case ack := <-c.flush:
			c.drain()
			close(ack)
		case <-c.stop:
			c.drain()
			return
		}
	}
}

func (c *Cache) drain() {
	select {
	case msgs := <-c.pending:
		c.write(msgs)
	default:
	}
}

func (c *Cache) write(msgs []domain.Message) {
	log := c.log.With("key", c.key, "message_count", len(msgs))

	data, err := Encode(msgs)
	if err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		log.Error("encode cache snapshot", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	if err := c.backend.Put(ctx, c.key, data); err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		log.Warn("cache write failed", "error", err)
		return
	}
	metrics.CacheWrites.WithLabelValues("ok").Inc()
	log.Debug("cache snapshot written")
}
