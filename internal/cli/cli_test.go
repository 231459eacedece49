package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/config"
	"github.com/PabloGalante/chatsync/internal/domain"
)

func testOptions(env config.MapEnv) *RootOptions {
	return &RootOptions{LoadConfig: func() (*config.Config, error) {
		return config.LoadFromEnv(env)
	}}
}

func sqliteEnv(t *testing.T) config.MapEnv {
	t.Helper()
	return config.MapEnv{
		"CHATSYNC_CACHE_BACKEND": config.BackendSQLite,
		"CHATSYNC_CACHE_PATH":    filepath.Join(t.TempDir(), "cache.db"),
		"CHATSYNC_SENDER_ID":     "ana@example.com",
		"CHATSYNC_LOG_LEVEL":     "error",
	}
}

func execute(ctx context.Context, opts *RootOptions, args ...string) (string, error) {
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestSendPrintsMessageID(t *testing.T) {
	out, err := execute(context.Background(), testOptions(config.MapEnv{}), "send", "hello", "everyone")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 26, "ulid expected, got %q", out)
}

func TestSendRejectsBlankText(t *testing.T) {
	_, err := execute(context.Background(), testOptions(config.MapEnv{}), "send", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
}

func TestSendImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))

	out, err := execute(context.Background(), testOptions(config.MapEnv{}), "send-image", path)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	_, err = execute(context.Background(), testOptions(config.MapEnv{}), "send-image", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestInvalidConfigFailsCommand(t *testing.T) {
	env := config.MapEnv{"CHATSYNC_REMOTE_BACKEND": "carrier-pigeon"}
	_, err := execute(context.Background(), testOptions(env), "send", "hi")
	assert.Error(t, err)
}

func TestBuildPersistsViewAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	env := sqliteEnv(t)
	cfg, err := config.LoadFromEnv(env)
	require.NoError(t, err)

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, app.Engine.Activate(ctx))

	_, err = app.Composer.SendText(ctx, "still here after restart")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(app.Cache.Load(ctx)) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, app.Close())

	app, err = Build(ctx, cfg)
	require.NoError(t, err)
	defer app.Close()

	cached := app.Cache.Load(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "still here after restart", cached[0].Body.Text)
	assert.Equal(t, domain.SenderID("ana@example.com"), cached[0].SenderID)
	assert.NotNil(t, cached[0].CreatedAt)
}

func TestTailPrintsCachedMessages(t *testing.T) {
	env := sqliteEnv(t)
	cfg, err := config.LoadFromEnv(env)
	require.NoError(t, err)

	seed, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	seed.Cache.Save([]domain.Message{{
		ID:        "m1",
		Body:      domain.TextBody("from last session"),
		SenderID:  "ana@example.com",
		CreatedAt: domain.TimePtr(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}})
	require.NoError(t, seed.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out, err := execute(ctx, testOptions(env), "tail")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com (me): from last session")
}

func TestTailPrinterPrintsEachMessageOnce(t *testing.T) {
	var out bytes.Buffer
	p := &tailPrinter{
		out:    &out,
		isMine: func(m domain.Message) bool { return m.SenderID == "ana" },
		seen:   map[domain.MessageID]bool{},
	}
	ts := domain.TimePtr(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	a := domain.Message{ID: "a", Body: domain.TextBody("hi"), SenderID: "ana", CreatedAt: ts}
	b := domain.Message{ID: "b", Body: domain.AttachmentBody("https://x/cat.png"), SenderID: "budi", CreatedAt: ts}

	p.print(syncengine.View{Messages: []domain.Message{a}})
	p.print(syncengine.View{Messages: []domain.Message{a, b}})
	p.print(syncengine.View{Messages: []domain.Message{a, b}, Stale: true})
	p.print(syncengine.View{Messages: []domain.Message{a, b}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "ana (me): hi"))
	assert.True(t, strings.HasSuffix(lines[1], "budi: [image] https://x/cat.png"))
	assert.Contains(t, lines[2], "connection lost")
	assert.Contains(t, lines[3], "reconnected")
}

func TestFormatPendingMessage(t *testing.T) {
	m := domain.Message{ID: "p", Body: domain.TextBody("soon"), SenderID: domain.AnonymousSender}
	assert.Equal(t, "--:--:-- Anon: soon", formatMessage(m, false))
}

func TestBuildClosesCacheBackendOnce(t *testing.T) {
	cfg, err := config.LoadFromEnv(sqliteEnv(t))
	require.NoError(t, err)

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, app.closers, 1, "the cache owns its backend")
	assert.Same(t, app.Cache, app.closers[0])
	assert.NoError(t, app.Close())
	assert.NoError(t, app.Close())
}
