package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendCookie   = "cookie"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	APIBaseURL string
	ListenAddr string
	BaseURL    string

	CookieHashKey  []byte
	CookieBlockKey []byte

	// where the web UI keeps each browser's token and profile
	SessionBackend string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// CLI state file
	StatePath string
	// optional, seals stored values when set
	StoreKey []byte

	Location *time.Location

	LogLevel  string
	LogFormat string

	LoginRatePerMinute int
	SessionTTL         time.Duration
}

// FromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first if present, and TABLEBOOK_CONFIG may
// name a YAML file whose keys (lower-cased env names) act as defaults that
// the environment overrides.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	file, err := loadFile(os.Getenv("TABLEBOOK_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	get := func(k, def string) string {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
		if v := strings.TrimSpace(file[strings.ToLower(k)]); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		APIBaseURL:     get("API_BASE_URL", "http://localhost:8547"),
		ListenAddr:     get("LISTEN_ADDR", ":8080"),
		BaseURL:        get("BASE_URL", "http://localhost:8080"),
		SessionBackend: strings.ToLower(get("SESSION_BACKEND", BackendCookie)),
		DatabaseURL:    get("DATABASE_URL", ""),
		RedisAddr:      get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  get("REDIS_PASSWORD", ""),
		StatePath:      get("STATE_PATH", defaultStatePath()),
		LogLevel:       get("LOG_LEVEL", "info"),
		LogFormat:      get("LOG_FORMAT", "console"),
	}

	switch cfg.SessionBackend {
	case BackendCookie, BackendRedis:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when SESSION_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("invalid SESSION_BACKEND %q (want cookie, redis or postgres)", cfg.SessionBackend)
	}

	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("invalid REDIS_DB")
	}
	if cfg.LoginRatePerMinute, err = strconv.Atoi(get("LOGIN_RATE_PER_MINUTE", "10")); err != nil || cfg.LoginRatePerMinute < 1 {
		return Config{}, fmt.Errorf("invalid LOGIN_RATE_PER_MINUTE")
	}
	ttl, err := strconv.Atoi(get("SESSION_TTL_MINUTES", "30"))
	if err != nil || ttl < 1 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL_MINUTES")
	}
	cfg.SessionTTL = time.Duration(ttl) * time.Minute

	cfg.Location, err = time.LoadLocation(get("TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	if v := get("STORE_KEY", ""); v != "" {
		if cfg.StoreKey, err = decodeB64(v); err != nil {
			return Config{}, fmt.Errorf("STORE_KEY: %w", err)
		}
		if len(cfg.StoreKey) != 32 {
			return Config{}, fmt.Errorf("STORE_KEY must decode to 32 bytes (got %d)", len(cfg.StoreKey))
		}
	}

	if v := get("COOKIE_HASH_KEY", ""); v != "" {
		if cfg.CookieHashKey, err = decodeB64(v); err != nil {
			return Config{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
		}
	}
	if v := get("COOKIE_BLOCK_KEY", ""); v != "" {
		if cfg.CookieBlockKey, err = decodeB64(v); err != nil {
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
		}
	}

	return cfg, nil
}

// RequireCookieKeys checks the keys the web server signs cookies with.
func (c Config) RequireCookieKeys() error {
	if len(c.CookieHashKey) == 0 || len(c.CookieBlockKey) == 0 {
		return fmt.Errorf("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required (32 and 16/24/32 bytes base64, see `tablebook keys`)")
	}
	switch len(c.CookieBlockKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("COOKIE_BLOCK_KEY must decode to 16, 24 or 32 bytes (got %d)", len(c.CookieBlockKey))
	}
	return nil
}

func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tablebook", "state.db")
}

// decodeB64 accepts the key itself or a path to a file holding it.
func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
