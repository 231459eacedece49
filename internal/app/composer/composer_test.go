package composer_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attmemory "github.com/PabloGalante/chatsync/internal/adapters/attachments/memory"
	"github.com/PabloGalante/chatsync/internal/adapters/cache"
	"github.com/PabloGalante/chatsync/internal/adapters/identity"
	"github.com/PabloGalante/chatsync/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatsync/internal/app/composer"
	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/domain"
)

// countingRemote records appends and can be told to fail.
type countingRemote struct {
	mu       sync.Mutex
	err      error
	appended []domain.Message
}

func (r *countingRemote) Append(_ context.Context, msg domain.Message) (domain.MessageID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.appended = append(r.appended, msg)
	return domain.MessageID("id-" + string(rune('a'+len(r.appended)-1))), nil
}

func (r *countingRemote) Subscribe(context.Context, domain.SnapshotHandler, domain.ErrorHandler) (domain.Subscription, error) {
	return nil, errors.New("not used")
}

func (r *countingRemote) calls() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.appended...)
}

type failingAttachments struct{ calls int }

func (f *failingAttachments) Store(context.Context, string, []byte, string) (string, error) {
	f.calls++
	return "", errors.New("bucket unreachable")
}

var pngBlob = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSendTextStampsSender(t *testing.T) {
	remote := &countingRemote{}
	c := composer.New(remote, attmemory.NewStore(), identity.NewSession("ana@example.com"))

	id, err := c.SendText(context.Background(), "halo semua")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageID("id-a"), id)

	calls := remote.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "halo semua", calls[0].Body.Text)
	assert.Empty(t, calls[0].Body.AttachmentURL)
	assert.Equal(t, domain.SenderID("ana@example.com"), calls[0].SenderID)
	assert.True(t, calls[0].Pending(), "timestamps come from the store")
}

func TestSendTextRejectsBlankBody(t *testing.T) {
	remote := &countingRemote{}
	c := composer.New(remote, attmemory.NewStore(), identity.NewSession("ana"))

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := c.SendText(context.Background(), body)
		assert.ErrorIs(t, err, domain.ErrEmptyBody)
	}
	assert.Empty(t, remote.calls())
}

func TestSendTextSignedOutIsAnonymous(t *testing.T) {
	remote := &countingRemote{}
	session := identity.NewSession("ana")
	c := composer.New(remote, attmemory.NewStore(), session)

	session.SignOut()
	_, err := c.SendText(context.Background(), "siapa aku?")
	require.NoError(t, err)

	assert.Equal(t, domain.AnonymousSender, remote.calls()[0].SenderID)
}

func TestSendTextSurfacesStoreError(t *testing.T) {
	storeErr := &domain.StoreError{Op: "append", Code: domain.StorePermissionDenied}
	remote := &countingRemote{err: storeErr}
	c := composer.New(remote, attmemory.NewStore(), identity.NewSession("ana"))

	_, err := c.SendText(context.Background(), "halo")
	assert.ErrorIs(t, err, domain.ErrAppendFailed)

	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StorePermissionDenied, se.Code)
}

func TestSendAttachmentUploadsThenAppends(t *testing.T) {
	remote := &countingRemote{}
	attachments := attmemory.NewStore()
	c := composer.New(remote, attachments, identity.NewSession("ana"))

	_, err := c.SendAttachment(context.Background(), pngBlob)
	require.NoError(t, err)

	calls := remote.calls()
	require.Len(t, calls, 1)
	body := calls[0].Body
	assert.Empty(t, body.Text)
	assert.Regexp(t, regexp.MustCompile(`^memory://images/\d+_[0-9a-f]{12}\.png$`), body.AttachmentURL)
	assert.Equal(t, 1, attachments.Len())
}

func TestSendAttachmentUploadFailureSkipsAppend(t *testing.T) {
	remote := &countingRemote{}
	attachments := &failingAttachments{}
	c := composer.New(remote, attachments, identity.NewSession("ana"))

	_, err := c.SendAttachment(context.Background(), pngBlob)
	assert.ErrorIs(t, err, domain.ErrAttachmentFailed)
	assert.Equal(t, 1, attachments.calls)
	assert.Empty(t, remote.calls())
}

func TestSendAttachmentAppendFailureLeavesBlob(t *testing.T) {
	remote := &countingRemote{err: errors.New("offline")}
	attachments := attmemory.NewStore()
	c := composer.New(remote, attachments, identity.NewSession("ana"))

	_, err := c.SendAttachment(context.Background(), pngBlob)
	assert.ErrorIs(t, err, domain.ErrAppendFailed)
	assert.Equal(t, 1, attachments.Len(), "orphaned upload is not cleaned up")
}

func TestSendAttachmentRejectsEmptyBlob(t *testing.T) {
	remote := &countingRemote{}
	attachments := &failingAttachments{}
	c := composer.New(remote, attachments, identity.NewSession("ana"))

	_, err := c.SendAttachment(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
	assert.Zero(t, attachments.calls)
}

func TestComposedMessagesCarryExactlyOneBody(t *testing.T) {
	remote := &countingRemote{}
	c := composer.New(remote, attmemory.NewStore(), identity.NewSession("ana"))
	ctx := context.Background()

	_, err := c.SendText(ctx, "satu")
	require.NoError(t, err)
	_, err = c.SendAttachment(ctx, pngBlob)
	require.NoError(t, err)
	_, err = c.SendAttachment(ctx, []byte("plain text file"))
	require.NoError(t, err)

	for _, m := range remote.calls() {
		assert.NoError(t, m.Body.Validate())
		assert.NotEqual(t, m.Body.IsText(), m.Body.IsAttachment())
	}
}

func TestIsMineFollowsCurrentIdentity(t *testing.T) {
	session := identity.NewSession("ana")
	c := composer.New(&countingRemote{}, attmemory.NewStore(), session)

	fromAna := domain.Message{SenderID: "ana"}
	fromAnon := domain.Message{SenderID: domain.AnonymousSender}

	assert.True(t, c.IsMine(fromAna))
	assert.True(t, c.IsMine(fromAna), "repeat calls give the same answer")
	assert.False(t, c.IsMine(fromAnon))

	session.SignOut()
	assert.False(t, c.IsMine(fromAna))
	assert.True(t, c.IsMine(fromAnon))
}

func TestSentMessageAppearsOnlyThroughSubscription(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewMessageStore()
	localCache := cache.New(cache.NewMemoryBackend())
	t.Cleanup(func() { _ = localCache.Close() })

	engine := syncengine.New(localCache, remote, syncengine.Options{})
	require.NoError(t, engine.Activate(ctx))
	t.Cleanup(engine.Deactivate)

	c := composer.New(remote, attmemory.NewStore(), identity.NewSession("ana"))

	var wg sync.WaitGroup
	for _, text := range []string{"satu", "dua", "tiga"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := c.SendText(ctx, text)
			assert.NoError(t, err)
		}(text)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.SendAttachment(ctx, pngBlob)
		assert.NoError(t, err)
	}()
	wg.Wait()

	require.Eventually(t, func() bool { return len(engine.View().Messages) == 4 }, time.Second, 5*time.Millisecond)

	view := engine.View().Messages
	assert.True(t, domain.IsOrdered(view))
	for _, m := range view {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Pending())
		assert.True(t, c.IsMine(m))
	}

	require.Eventually(t, func() bool { return len(localCache.Load(ctx)) == 4 }, time.Second, 5*time.Millisecond)
}
