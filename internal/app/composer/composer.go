package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/metrics"
	"github.com/PabloGalante/chatsync/internal/observability"
)

const attachmentPrefix = "images/"

// Composer builds message records and submits them to the remote store.
// It never touches the view: sent messages show up through the subscription.
type Composer struct {
	remote      domain.RemoteMessageStore
	attachments domain.AttachmentStore
	identity    domain.IdentitySource

	now    func() time.Time
	suffix func() string
}

func New(
	remote domain.RemoteMessageStore,
	attachments domain.AttachmentStore,
	identity domain.IdentitySource,
) *Composer {
	return &Composer{
		remote:      remote,
		attachments: attachments,
		identity:    identity,
		now:         time.Now,
		suffix:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
	}
}

// SendText appends a text message. Whitespace-only bodies fail with
// domain.ErrEmptyBody before the store is contacted.
func (c *Composer) SendText(ctx context.Context, body string) (domain.MessageID, error) {
	log := observability.LoggerFromContext(ctx).With("kind", "text")

	if strings.TrimSpace(body) == "" {
		metrics.MessagesSent.WithLabelValues("text", "empty").Inc()
		return "", domain.ErrEmptyBody
	}

	return c.append(ctx, log, "text", domain.TextBody(body))
}

// SendAttachment uploads blob, then appends a message pointing at it. If the
// upload fails nothing is appended; if the append fails the uploaded blob is
// left in place.
func (c *Composer) SendAttachment(ctx context.Context, blob []byte) (domain.MessageID, error) {
	log := observability.LoggerFromContext(ctx).With("kind", "attachment")

	if len(blob) == 0 {
		metrics.MessagesSent.WithLabelValues("attachment", "empty").Inc()
		return "", domain.ErrEmptyBody
	}

	mt := mimetype.Detect(blob)
	name := c.attachmentName(mt.Extension())
	log = log.With("object", name, "content_type", mt.String(), "bytes", len(blob))
	log.Info("uploading attachment")

	url, err := c.attachments.Store(ctx, name, blob, mt.String())
	if err != nil {
		metrics.MessagesSent.WithLabelValues("attachment", "upload_failed").Inc()
		log.Error("attachment upload failed", "error", err)
		return "", domain.NewComposeError(domain.ComposeAttachmentFailed, "attachment upload failed", err)
	}
	if url == "" {
		metrics.MessagesSent.WithLabelValues("attachment", "upload_failed").Inc()
		return "", domain.NewComposeError(domain.ComposeAttachmentFailed, "attachment store returned no url", nil)
	}

	return c.append(ctx, log, "attachment", domain.AttachmentBody(url))
}

// IsMine reports whether m was sent by the identity signed in right now.
func (c *Composer) IsMine(m domain.Message) bool {
	return domain.IsMine(m, c.CurrentSender())
}

// CurrentSender is the identity new messages are stamped with.
func (c *Composer) CurrentSender() domain.SenderID {
	return domain.CurrentSender(c.identity)
}

func (c *Composer) append(ctx context.Context, log *slog.Logger, kind string, body domain.Body) (domain.MessageID, error) {
	msg := domain.Message{
		Body:     body,
		SenderID: c.CurrentSender(),
	}

	id, err := c.remote.Append(ctx, msg)
	if err != nil {
		metrics.MessagesSent.WithLabelValues(kind, "append_failed").Inc()
		log.Error("append failed", "sender_id", msg.SenderID, "error", err)
		return "", domain.NewComposeError(domain.ComposeAppendFailed, "message could not be sent", err)
	}

	metrics.MessagesSent.WithLabelValues(kind, "ok").Inc()
	log.Info("message appended", "message_id", id, "sender_id", msg.SenderID)
	return id, nil
}

// attachmentName is images/<unix-millis>_<random>.<ext>.
func (c *Composer) attachmentName(ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s%d_%s%s", attachmentPrefix, c.now().UnixMilli(), c.suffix(), ext)
}
