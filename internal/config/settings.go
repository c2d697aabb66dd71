package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Remote backend names.
const (
	RemotePostgREST = "postgrest"
	RemotePostgres  = "postgres"
)

// Settings are the user-editable options stored in config.yaml.
type Settings struct {
	Remote RemoteSettings `yaml:"remote"`
	Auth   AuthSettings   `yaml:"auth"`
	Cache  CacheSettings  `yaml:"cache"`
	Sync   SyncSettings   `yaml:"sync"`
}

// RemoteSettings configure the remote task table.
type RemoteSettings struct {
	// Backend is "postgrest" (Supabase REST) or "postgres" (direct connection).
	Backend string `yaml:"backend"`

	// URL is the project base URL for the postgrest backend.
	URL string `yaml:"url"`

	// APIKey is the public (anon) project key sent as the apikey header.
	APIKey string `yaml:"api_key"`

	// DatabaseURL is the connection string for the postgres backend.
	DatabaseURL string `yaml:"database_url"`

	// Table is the remote table name.
	Table string `yaml:"table"`
}

// AuthSettings configure the OAuth identity provider.
type AuthSettings struct {
	// Provider is "google" or "custom".
	Provider     string   `yaml:"provider"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`

	// Token is a static bearer token; when set the token file is not used.
	Token string `yaml:"-"`
}

// CacheSettings configure the local cache storage.
type CacheSettings struct {
	// Backend is "file", "sqlite" or "redis".
	Backend     string `yaml:"backend"`
	Key         string `yaml:"key"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// SyncSettings tune reconciliation and the watch loop.
type SyncSettings struct {
	// Timeout bounds each remote call.
	Timeout time.Duration `yaml:"timeout"`

	// ProbeAddr is the host:port dialed to decide connectivity.
	// Defaults to the remote host.
	ProbeAddr string `yaml:"probe_addr"`

	// ProbeInterval is how often watch mode re-checks connectivity.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// BreakerFailures is the consecutive remote failures that open the circuit breaker.
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`

	// MetricsAddr is the listen address for /metrics in watch mode; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Remote: RemoteSettings{
			Backend: RemotePostgREST,
			Table:   "tasks",
		},
		Auth: AuthSettings{
			Provider: "custom",
			Scopes:   []string{"openid", "email", "profile"},
		},
		Cache: CacheSettings{
			Backend:     "file",
			Key:         "@todo_tasks",
			RedisPrefix: "tasksync:",
		},
		Sync: SyncSettings{
			Timeout:         10 * time.Second,
			ProbeInterval:   15 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
	}
}

// Load reads config.yaml (if present), then .env (if present), then applies
// TASKSYNC_* environment overrides. Values already in the environment win over .env.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.SettingsPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c.Settings); err != nil {
			return fmt.Errorf("invalid %s: %w", SettingsFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}

	envPath := filepath.Join(c.Dir, EnvFile)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvFile, err)
		}
	}

	c.Settings.applyEnv()
	return nil
}

func (s *Settings) applyEnv() {
	s.Remote.Backend = getEnv("TASKSYNC_REMOTE_BACKEND", s.Remote.Backend)
	s.Remote.URL = getEnv("TASKSYNC_REMOTE_URL", s.Remote.URL)
	s.Remote.APIKey = getEnv("TASKSYNC_REMOTE_API_KEY", s.Remote.APIKey)
	s.Remote.DatabaseURL = getEnv("TASKSYNC_DATABASE_URL", s.Remote.DatabaseURL)
	s.Remote.Table = getEnv("TASKSYNC_REMOTE_TABLE", s.Remote.Table)

	s.Auth.Provider = getEnv("TASKSYNC_AUTH_PROVIDER", s.Auth.Provider)
	s.Auth.ClientID = getEnv("TASKSYNC_OAUTH_CLIENT_ID", s.Auth.ClientID)
	s.Auth.ClientSecret = getEnv("TASKSYNC_OAUTH_CLIENT_SECRET", s.Auth.ClientSecret)
	s.Auth.AuthURL = getEnv("TASKSYNC_OAUTH_AUTH_URL", s.Auth.AuthURL)
	s.Auth.TokenURL = getEnv("TASKSYNC_OAUTH_TOKEN_URL", s.Auth.TokenURL)
	if scopes := os.Getenv("TASKSYNC_OAUTH_SCOPES"); scopes != "" {
		s.Auth.Scopes = strings.Fields(strings.ReplaceAll(scopes, ",", " "))
	}
	s.Auth.Token = getEnv("TASKSYNC_TOKEN", s.Auth.Token)

	s.Cache.Backend = getEnv("TASKSYNC_CACHE_BACKEND", s.Cache.Backend)
	s.Cache.Key = getEnv("TASKSYNC_CACHE_KEY", s.Cache.Key)
	s.Cache.SQLitePath = getEnv("TASKSYNC_SQLITE_PATH", s.Cache.SQLitePath)
	s.Cache.RedisURL = getEnv("TASKSYNC_REDIS_URL", s.Cache.RedisURL)

	s.Sync.Timeout = getDurationEnv("TASKSYNC_SYNC_TIMEOUT", s.Sync.Timeout)
	s.Sync.ProbeAddr = getEnv("TASKSYNC_PROBE_ADDR", s.Sync.ProbeAddr)
	s.Sync.ProbeInterval = getDurationEnv("TASKSYNC_PROBE_INTERVAL", s.Sync.ProbeInterval)
	s.Sync.BreakerFailures = uint32(getIntEnv("TASKSYNC_BREAKER_FAILURES", int(s.Sync.BreakerFailures)))
	s.Sync.BreakerTimeout = getDurationEnv("TASKSYNC_BREAKER_TIMEOUT", s.Sync.BreakerTimeout)
	s.Sync.MetricsAddr = getEnv("TASKSYNC_METRICS_ADDR", s.Sync.MetricsAddr)
}

// ProbeTarget returns the host:port used to check connectivity.
// An explicit probe_addr wins; otherwise the remote URL (or database URL) host is used.
func (s Settings) ProbeTarget() string {
	if s.Sync.ProbeAddr != "" {
		return s.Sync.ProbeAddr
	}
	raw := s.Remote.URL
	defaultPort := "443"
	if s.Remote.Backend == RemotePostgres {
		raw = s.Remote.DatabaseURL
		defaultPort = "5432"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "http" {
			port = "80"
		} else {
			port = defaultPort
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i >= 0 {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
