package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatsync/internal/adapters/cache"
	"github.com/PabloGalante/chatsync/internal/adapters/cache/sqlite"
	"github.com/PabloGalante/chatsync/internal/domain"
)

func TestBackendGetPut(t *testing.T) {
	ctx := context.Background()
	b, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.Get(ctx, "chat_messages")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, b.Put(ctx, "chat_messages", []byte("v1")))
	require.NoError(t, b.Put(ctx, "chat_messages", []byte("v2")))

	got, err := b.Get(ctx, "chat_messages")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestCacheSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chatsync.db")

	b, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	c := cache.New(b)

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c.Save([]domain.Message{
		{ID: "m1", Body: domain.TextBody("pagi"), SenderID: "ana", CreatedAt: domain.TimePtr(created)},
	})
	require.NoError(t, c.Close())

	b2, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	c2 := cache.New(b2)
	t.Cleanup(func() { _ = c2.Close() })

	got := c2.Load(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MessageID("m1"), got[0].ID)
	assert.Equal(t, "pagi", got[0].Body.Text)
}
