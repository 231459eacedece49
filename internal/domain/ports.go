package domain

import "context"

// IdentitySource exposes the currently signed-in sender, if any.
type IdentitySource interface {
	CurrentSenderID() (SenderID, bool)
}

// CurrentSender resolves the identity, falling back to AnonymousSender.
func CurrentSender(src IdentitySource) SenderID {
	if src == nil {
		return AnonymousSender
	}
	id, ok := src.CurrentSenderID()
	if !ok || id == "" {
		return AnonymousSender
	}
	return id
}

// AttachmentStore persists a blob under name and returns a stable URL for it.
type AttachmentStore interface {
	Store(ctx context.Context, name string, blob []byte, contentType string) (string, error)
}

// LocalCache is a best-effort persistent mirror of the last known stream.
// Load never fails and Save never blocks: cache problems are logged by the
// implementation and never reach the caller.
type LocalCache interface {
	Load(ctx context.Context) []Message
	Save(msgs []Message)
}

// SnapshotHandler receives the complete ordered stream on every change.
type SnapshotHandler func(msgs []Message)

// ErrorHandler is called once when a subscription stops delivering.
type ErrorHandler func(err error)

// Subscription is a live handle on a RemoteMessageStore query.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// RemoteMessageStore is the ordered, appendable source of truth.
//
// Subscribe delivers full snapshots ordered by created_at ascending, never
// diffs. Deliveries for a single subscription are serialized.
type RemoteMessageStore interface {
	Append(ctx context.Context, msg Message) (MessageID, error)
	Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error)
}
