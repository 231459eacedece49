package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	attgcs "github.com/PabloGalante/chatsync/internal/adapters/attachments/gcs"
	attmemory "github.com/PabloGalante/chatsync/internal/adapters/attachments/memory"
	"github.com/PabloGalante/chatsync/internal/adapters/cache"
	cacheredis "github.com/PabloGalante/chatsync/internal/adapters/cache/redis"
	cachesqlite "github.com/PabloGalante/chatsync/internal/adapters/cache/sqlite"
	"github.com/PabloGalante/chatsync/internal/adapters/identity"
	firestorestore "github.com/PabloGalante/chatsync/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/chatsync/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatsync/internal/app/composer"
	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/config"
	"github.com/PabloGalante/chatsync/internal/domain"
	"github.com/PabloGalante/chatsync/internal/observability"
)

// App is the wired set of components one process runs.
type App struct {
	Engine   *syncengine.Engine
	Composer *composer.Composer
	Session  *identity.Session
	Cache    *cache.Cache

	closers []io.Closer
}

// Build wires the adapters selected by cfg. The caller owns Close.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := observability.Component("wire")
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var remote domain.RemoteMessageStore
	switch cfg.RemoteBackend {
	case config.BackendFirestore:
		log.Info("using firestore remote", "project", cfg.GCPProjectID, "collection", cfg.Collection)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("firestore store: %w", err)
		}
		app.closers = append(app.closers, fs)
		remote = fs
	default:
		log.Info("using in-memory remote")
		remote = memstore.NewMessageStore()
	}

	var attachments domain.AttachmentStore
	switch cfg.AttachmentBackend {
	case config.BackendGCS:
		log.Info("using gcs attachments", "bucket", cfg.StorageBucket)
		gs, err := attgcs.NewStore(ctx, cfg.StorageBucket)
		if err != nil {
			return nil, fmt.Errorf("gcs store: %w", err)
		}
		app.closers = append(app.closers, gs)
		attachments = gs
	default:
		log.Info("using in-memory attachments")
		attachments = attmemory.NewStore()
	}

	var backend cache.Backend
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		log.Info("using sqlite cache", "path", cfg.CachePath)
		backend, err = cachesqlite.Open(ctx, cfg.CachePath)
	case config.BackendRedis:
		log.Info("using redis cache")
		backend, err = cacheredis.Open(ctx, cfg.RedisURL)
	default:
		backend = cache.NewMemoryBackend()
	}
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}

	// Cache.Close flushes the pending write, then closes the backend.
	app.Cache = cache.New(backend, cache.WithKey(cfg.CacheKey), cache.WithLogger(observability.Component("cache")))
	app.closers = append(app.closers, app.Cache)

	app.Session, err = newSession(cfg, log)
	if err != nil {
		return nil, err
	}

	app.Engine = syncengine.New(app.Cache, remote, syncengine.Options{
		ResubscribeDelay: cfg.ResubscribeDelay,
		Logger:           observability.Component("syncengine"),
	})
	app.Composer = composer.New(remote, attachments, app.Session)
	return app, nil
}

func newSession(cfg *config.Config, log *slog.Logger) (*identity.Session, error) {
	if cfg.IDToken != "" {
		s, err := identity.FromToken(cfg.IDToken, cfg.TokenSecret)
		if err != nil {
			return nil, fmt.Errorf("id token: %w", err)
		}
		sender, _ := s.CurrentSenderID()
		log.Info("signed in from id token", "sender", sender)
		return s, nil
	}
	if cfg.SenderID != "" {
		log.Info("signed in", "sender", cfg.SenderID)
	} else {
		log.Info("no identity configured, sending as anonymous")
	}
	return identity.NewSession(domain.SenderID(cfg.SenderID)), nil
}

// Close deactivates the engine and releases adapters in reverse order.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Deactivate()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
