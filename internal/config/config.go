package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendGCS       = "gcs"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	GCPProjectID  string
	Collection    string
	StorageBucket string

	RemoteBackend     string // "memory" or "firestore"
	AttachmentBackend string // "memory" or "gcs"

	CacheBackend string // "memory", "sqlite" or "redis"
	CachePath    string
	RedisURL     string
	CacheKey     string

	// ResubscribeDelay <= 0 leaves a failed subscription stale until the
	// engine is reactivated.
	ResubscribeDelay time.Duration

	// Identity: a signed ID token wins over a plain sender id.
	SenderID    string
	IDToken     string
	TokenSecret string
}

// Env abstracts the process environment so tests can inject values.
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// MapEnv is an Env backed by a map, handy in tests.
type MapEnv map[string]string

func (m MapEnv) Getenv(key string) string { return m[key] }

// Load reads a .env file if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv(osEnv{})
}

// LoadFromEnv builds the config from env, applying defaults and validating.
func LoadFromEnv(env Env) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(env.Getenv("CHATSYNC_" + key)); v != "" {
			return v
		}
		return def
	}

	var mode Mode
	switch raw := get("MODE", "local"); raw {
	case "gcp":
		mode = ModeGCP
	case "local":
		mode = ModeLocal
	default:
		return nil, fmt.Errorf("unknown CHATSYNC_MODE %q (want local or gcp)", raw)
	}

	remoteDefault, attachmentDefault, cacheDefault := BackendMemory, BackendMemory, BackendMemory
	if mode == ModeGCP {
		remoteDefault, attachmentDefault, cacheDefault = BackendFirestore, BackendGCS, BackendSQLite
	}

	cfg := &Config{
		Mode: mode,

		Port:     get("PORT", "8080"),
		LogLevel: get("LOG_LEVEL", "info"),

		GCPProjectID:  get("GCP_PROJECT", ""),
		Collection:    get("COLLECTION", "messages"),
		StorageBucket: get("STORAGE_BUCKET", ""),

		RemoteBackend:     get("REMOTE_BACKEND", remoteDefault),
		AttachmentBackend: get("ATTACHMENT_BACKEND", attachmentDefault),

		CacheBackend: get("CACHE_BACKEND", cacheDefault),
		CachePath:    get("CACHE_PATH", "./data/chatsync.db"),
		RedisURL:     get("REDIS_URL", ""),
		CacheKey:     get("CACHE_KEY", "chat_messages"),

		SenderID:    get("SENDER_ID", ""),
		IDToken:     get("ID_TOKEN", ""),
		TokenSecret: get("TOKEN_SECRET", ""),
	}

	if raw := get("RESUBSCRIBE_DELAY", "5s"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CHATSYNC_RESUBSCRIBE_DELAY %q: %w", raw, err)
		}
		cfg.ResubscribeDelay = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RemoteBackend {
	case BackendMemory:
	case BackendFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("CHATSYNC_GCP_PROJECT is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown CHATSYNC_REMOTE_BACKEND %q", c.RemoteBackend)
	}

	switch c.AttachmentBackend {
	case BackendMemory:
	case BackendGCS:
		if c.StorageBucket == "" {
			return fmt.Errorf("CHATSYNC_STORAGE_BUCKET is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown CHATSYNC_ATTACHMENT_BACKEND %q", c.AttachmentBackend)
	}

	switch c.CacheBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("CHATSYNC_REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown CHATSYNC_CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.IDToken != "" && c.TokenSecret == "" {
		return fmt.Errorf("CHATSYNC_TOKEN_SECRET is required when CHATSYNC_ID_TOKEN is set")
	}
	return nil
}
