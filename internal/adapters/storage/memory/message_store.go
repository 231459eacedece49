package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/PabloGalante/chatsync/internal/domain"
)

// MessageStore is an in-process RemoteMessageStore. It assigns ULID ids and
// commit timestamps the way the real store does, and pushes a full snapshot
// to every subscriber after each append.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.Message
	subs     map[*subscription]struct{}
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		subs: make(map[*subscription]struct{}),
		now:  time.Now,
	}
}

// Append commits msg with a fresh id and a server timestamp that never goes
// backwards, so the stream stays ordered by created_at.
func (s *MessageStore) Append(ctx context.Context, msg domain.Message) (domain.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.StoreError{Op: "append", Code: domain.StoreCanceled, Cause: err}
	}

	s.mu.Lock()
	createdAt := s.now().UTC()
	if n := len(s.messages); n > 0 {
		if last := *s.messages[n-1].CreatedAt; createdAt.Before(last) {
			createdAt = last
		}
	}

	msg.ID = domain.MessageID(ulid.Make().String())
	msg.CreatedAt = domain.TimePtr(createdAt)
	s.messages = append(s.messages, msg)

	// Offer under the lock so subscribers see snapshots in commit order.
	snapshot := domain.CloneMessages(s.messages)
	for sub := range s.subs {
		sub.offer(snapshot)
	}
	s.mu.Unlock()

	return msg.ID, nil
}

// Messages returns the committed stream.
func (s *MessageStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneMessages(s.messages)
}

// Subscribe delivers the current stream immediately, then again after every
// append. onError is never called: an in-process store cannot disconnect.
func (s *MessageStore) Subscribe(ctx context.Context, onSnapshot domain.SnapshotHandler, _ domain.ErrorHandler) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "subscribe", Code: domain.StoreCanceled, Cause: err}
	}

	sub := &subscription{
		store:   s,
		handler: onSnapshot,
		pending: make(chan []domain.Message, 1),
		stop:    make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.offer(domain.CloneMessages(s.messages))
	s.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

func (s *MessageStore) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

// subscription delivers snapshots one at a time from its own goroutine.
// Its single pending slot keeps only the newest undelivered snapshot.
type subscription struct {
	store   *MessageStore
	handler domain.SnapshotHandler
	pending chan []domain.Message
	stop    chan struct{}
	once    sync.Once
}

func (sub *subscription) offer(msgs []domain.Message) {
	for {
		select {
		case sub.pending <- msgs:
			return
		default:
		}
		select {
		case <-sub.pending:
		default:
		}
	}
}

func (sub *subscription) run(ctx context.Context) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-sub.stop:
			return
		case <-ctx.Done():
			return
		case msgs := <-sub.pending:
			select {
			case <-sub.stop:
				return
			default:
			}
			sub.handler(msgs)
		}
	}
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		close(sub.stop)
		sub.store.remove(sub)
	})
}
