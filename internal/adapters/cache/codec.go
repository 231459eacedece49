package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/chatsync/internal/domain"
)

// ErrCorrupt is returned by Decode when the slot cannot be turned back into
// a message sequence.
var ErrCorrupt = errors.New("cache snapshot is corrupt")

// record mirrors the remote record shape, plus the id.
type record struct {
	ID                string     `json:"id"`
	BodyText          *string    `json:"body_text"`
	BodyAttachmentURL *string    `json:"body_attachment_url"`
	SenderID          string     `json:"sender_id"`
	CreatedAt         *time.Time `json:"created_at"`
}

// Encode serializes the ordered sequence as a JSON array.
func Encode(msgs []domain.Message) ([]byte, error) {
	out := make([]record, 0, len(msgs))
	for _, m := range msgs {
		r := record{
			ID:        string(m.ID),
			SenderID:  string(m.SenderID),
			CreatedAt: m.CreatedAt,
		}
		if m.Body.Text != "" {
			text := m.Body.Text
			r.BodyText = &text
		}
		if m.Body.AttachmentURL != "" {
			url := m.Body.AttachmentURL
			r.BodyAttachmentURL = &url
		}
		out = append(out, r)
	}
	return json.Marshal(out)
}

// Decode is the inverse of Encode. Records are restored as written: the
// single-body rule belongs to producers, not to the cache.
func Decode(data []byte) ([]domain.Message, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	out := make([]domain.Message, 0, len(recs))
	for _, r := range recs {
		var body domain.Body
		if r.BodyText != nil {
			body.Text = *r.BodyText
		}
		if r.BodyAttachmentURL != nil {
			body.AttachmentURL = *r.BodyAttachmentURL
		}
		out = append(out, domain.Message{
			ID:        domain.MessageID(r.ID),
			Body:      body,
			SenderID:  domain.SenderID(r.SenderID),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
