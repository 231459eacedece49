package syncengine_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PabloGalante/chatsync/internal/domain"
)

var t0 = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, sec int) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(id),
		Body:      domain.TextBody("text " + id),
		SenderID:  "ana",
		CreatedAt: domain.TimePtr(t0.Add(time.Duration(sec) * time.Second)),
	}
}

// fakeCache records saves; Load can be held open with loadGate.
type fakeCache struct {
	mu          sync.Mutex
	loaded      []domain.Message
	saves       [][]domain.Message
	loadGate    chan struct{}
	loadStarted chan struct{}
}

func (c *fakeCache) Load(context.Context) []domain.Message {
	if c.loadGate != nil {
		close(c.loadStarted)
		<-c.loadGate
	}
	if c.loaded == nil {
		return []domain.Message{}
	}
	return domain.CloneMessages(c.loaded)
}

func (c *fakeCache) Save(msgs []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves = append(c.saves, msgs)
}

func (c *fakeCache) saved() [][]domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]domain.Message(nil), c.saves...)
}

// fakeRemote hands out subscriptions the test drives by hand.
type fakeRemote struct {
	mu           sync.Mutex
	subscribeErr error
	subs         []*fakeSub
}

type fakeSub struct {
	onSnapshot domain.SnapshotHandler
	onError    domain.ErrorHandler

	mu           sync.Mutex
	unsubscribed int
}

func (s *fakeSub) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed++
}

func (s *fakeSub) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func (r *fakeRemote) Append(context.Context, domain.Message) (domain.MessageID, error) {
	return "", errors.New("not used")
}

func (r *fakeRemote) Subscribe(_ context.Context, onSnapshot domain.SnapshotHandler, onError domain.ErrorHandler) (domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}
	sub := &fakeSub{onSnapshot: onSnapshot, onError: onError}
	r.subs = append(r.subs, sub)
	return sub, nil
}

func (r *fakeRemote) setSubscribeErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribeErr = err
}

func (r *fakeRemote) subCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *fakeRemote) latest() *fakeSub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) == 0 {
		return nil
	}
	return r.subs[len(r.subs)-1]
}
