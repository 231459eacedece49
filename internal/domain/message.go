package domain

import (
	"strings"
	"time"
)

// Body is the payload of a message: either text or an attachment URL, never both.
type Body struct {
	Text          string
	AttachmentURL string
}

func TextBody(text string) Body {
	return Body{Text: text}
}

func AttachmentBody(url string) Body {
	return Body{AttachmentURL: url}
}

func (b Body) IsText() bool       { return b.Text != "" && b.AttachmentURL == "" }
func (b Body) IsAttachment() bool { return b.AttachmentURL != "" && b.Text == "" }

// Validate reports ErrInvalidBody unless exactly one field is set.
// Whitespace-only text counts as empty.
func (b Body) Validate() error {
	hasText := strings.TrimSpace(b.Text) != ""
	hasURL := b.AttachmentURL != ""
	if hasText == hasURL {
		return ErrInvalidBody
	}
	return nil
}

// Message is one record of the shared stream. It is never mutated after the
// remote store commits it.
type Message struct {
	ID       MessageID
	Body     Body
	SenderID SenderID

	// CreatedAt is assigned by the remote store; nil while pending.
	CreatedAt *Timestamp
}

// Pending reports whether the store has not yet committed a timestamp.
func (m Message) Pending() bool {
	return m.CreatedAt == nil
}

// Less orders by CreatedAt ascending, pending messages last.
func Less(a, b Message) bool {
	switch {
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	default:
		return a.CreatedAt.Before(*b.CreatedAt)
	}
}

// IsOrdered reports whether msgs respects the stream ordering.
func IsOrdered(msgs []Message) bool {
	for i := 1; i < len(msgs); i++ {
		if Less(msgs[i], msgs[i-1]) {
			return false
		}
	}
	return true
}

// IsMine compares the message sender with the current identity.
func IsMine(m Message, current SenderID) bool {
	return m.SenderID == current
}

// CloneMessages returns a copy that shares no backing array with msgs.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func TimePtr(t time.Time) *Timestamp {
	return &t
}
