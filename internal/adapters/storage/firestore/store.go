package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/observability"
)

const DefaultCollection = "messages"

type Store struct {
	client     *firestore.Client
	collection string
	log        *slog.Logger
}

// NewStore creates a Firestore-backed RemoteMessageStore.
// Honors FIRESTORE_EMULATOR_HOST through the client library.
func NewStore(ctx context.Context, projectID, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return NewStoreWithClient(client, collection), nil
}

func NewStoreWithClient(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		client:     client,
		collection: collection,
		log:        observability.Component("firestore").With("collection", collection),
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) messagesCol() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *Store) orderedQuery() firestore.Query {
	return s.messagesCol().OrderBy("created_at", firestore.Asc)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type messageDoc struct {
	BodyText          *string    `firestore:"body_text"`
	BodyAttachmentURL *string    `firestore:"body_attachment_url"`
	SenderID          string     `firestore:"sender_id"`
	CreatedAt         *time.Time `firestore:"created_at"`
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func newDocData(msg domain.Message) map[string]interface{} {
	return map[string]interface{}{
		"body_text":           nullable(msg.Body.Text),
		"body_attachment_url": nullable(msg.Body.AttachmentURL),
		"sender_id":           string(msg.SenderID),
		"created_at":          firestore.ServerTimestamp,
	}
}

func toMessage(id string, doc messageDoc) domain.Message {
	var body domain.Body
	if doc.BodyText != nil {
		body.Text = *doc.BodyText
	}
	if doc.BodyAttachmentURL != nil {
		body.AttachmentURL = *doc.BodyAttachmentURL
	}
	return domain.Message{
		ID:        domain.MessageID(id),
		Body:      body,
		SenderID:  domain.SenderID(doc.SenderID),
		CreatedAt: doc.CreatedAt,
	}
}

func toStoreError(op string, err error) *domain.StoreError {
	code := domain.StoreUnknown
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		code = domain.StoreUnavailable
	case codes.PermissionDenied, codes.Unauthenticated:
		code = domain.StorePermissionDenied
	case codes.Canceled:
		code = domain.StoreCanceled
	}
	if errors.Is(err, context.Canceled) {
		code = domain.StoreCanceled
	}
	return &domain.StoreError{Op: op, Code: code, Cause: err}
}

// ─────────────────────────────────────────
// RemoteMessageStore implementation
// ─────────────────────────────────────────

// Append adds a document; id and created_at are assigned by Firestore.
func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.MessageID, error) {
	ref, _, err := s.messagesCol().Add(ctx, newDocData(msg))
	if err != nil {
		return "", toStoreError("append", fmt.Errorf("firestore Append: %w", err))
	}
	return domain.MessageID(ref.ID), nil
}

// Subscribe listens to the collection ordered by created_at and hands every
// query snapshot to onSnapshot as a full sequence, from a single goroutine.
func (s *Store) Subscribe(ctx context.Context, onSnapshot domain.SnapshotHandler, onError domain.ErrorHandler) (domain.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	it := s.orderedQuery().Snapshots(subCtx)

	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	go s.listen(subCtx, it, sub, onSnapshot, onError)
	return sub, nil
}

func (s *Store) listen(
	ctx context.Context,
	it *firestore.QuerySnapshotIterator,
	sub *subscription,
	onSnapshot domain.SnapshotHandler,
	onError domain.ErrorHandler,
) {
	defer close(sub.done)
	defer it.Stop()

	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("snapshot listener stopped", "error", err)
		if onError != nil {
			onError(toStoreError("subscribe", err))
		}
	}

	for {
		snap, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				return
			}
			fail(fmt.Errorf("firestore Snapshots: %w", err))
			return
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			fail(fmt.Errorf("firestore snapshot documents: %w", err))
			return
		}

		msgs := make([]domain.Message, 0, len(docs))
		for _, d := range docs {
			var doc messageDoc
			if err := d.DataTo(&doc); err != nil {
				// One malformed document must not hide the rest of the stream.
				s.log.Warn("skipping undecodable message", "id", d.Ref.ID, "error", err)
				continue
			}
			msgs = append(msgs, toMessage(d.Ref.ID, doc))
		}

		if ctx.Err() != nil {
			return
		}
		s.log.Debug("snapshot received", "message_count", len(msgs), "read_time", snap.ReadTime)
		onSnapshot(msgs)
	}
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe cancels the listener; the iterator is stopped by its own goroutine.
func (sub *subscription) Unsubscribe() {
	sub.once.Do(sub.cancel)
}
