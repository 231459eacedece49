package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatsync/internal/adapters/cache"
)

func TestEncodeUsesRecordShape(t *testing.T) {
	data, err := cache.Encode(sampleMessages()[:2])
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"id":"m1","body_text":"halo","body_attachment_url":null,"sender_id":"ana@example.com","created_at":"2025-03-01T09:30:00Z"},
		{"id":"m2","body_text":null,"body_attachment_url":"https://cdn.example.com/images/1.jpg","sender_id":"bob@example.com","created_at":"2025-03-01T09:31:00Z"}
	]`, string(data))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := cache.Decode([]byte("chat_messages"))
	assert.ErrorIs(t, err, cache.ErrCorrupt)
}

func TestDecodeNullCreatedAt(t *testing.T) {
	msgs, err := cache.Decode([]byte(`[{"id":"x","body_text":"hi","body_attachment_url":null,"sender_id":"Anon","created_at":null}]`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending())
	assert.Equal(t, "hi", msgs[0].Body.Text)
}
