package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blog-session/internal/pkg/jwt"
	"blog-session/internal/pkg/session"
)

// Session store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type RedisConfig struct {
	Addrs       []string
	Password    string
	DB          int
	ClusterMode bool
}

// ClientConfig configures blogctl and the session pipeline.
type ClientConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	LoginPath  string
	LogLevel   string

	StoreBackend string
	StorePath    string
	StoreKey     string
	Redis        RedisConfig
}

// StubConfig configures the development backend.
type StubConfig struct {
	HTTPAddr    string
	GinMode     string
	LogLevel    string
	AdminSecret string
	SeedPosts   bool

	Redis RedisConfig
	JWT   jwt.Config
}

// Load loads environment variables into ClientConfig.
func Load() ClientConfig {
	return ClientConfig{
		APIBaseURL: getEnv("BLOG_API_URL", "http://localhost:8080"),
		Timeout:    getEnvDuration("BLOG_API_TIMEOUT", 10*time.Second),
		LoginPath:  getEnv("BLOG_LOGIN_PATH", "/login"),
		LogLevel:   getEnv("LOG_LEVEL", "warn"),

		StoreBackend: strings.ToLower(getEnv("SESSION_STORE", StoreFile)),
		StorePath:    getEnv("SESSION_FILE", defaultStorePath()),
		StoreKey:     getEnv("SESSION_REDIS_KEY", session.DefaultKey),
		Redis:        loadRedis(),
	}
}

// LoadStub loads environment variables into StubConfig.
func LoadStub() StubConfig {
	return StubConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AdminSecret: getEnv("ADMIN_SECRET", ""),
		SeedPosts:   getEnvBool("SEED_POSTS", true),
		Redis:       loadRedis(),

		JWT: jwt.Config{
			PrivPath:   getEnv("JWT_PRIVATE_KEY_PATH", ""),
			PubPath:    getEnv("JWT_PUBLIC_KEY_PATH", ""),
			Issuer:     getEnv("JWT_ISSUER", "blog-authstub"),
			Audience:   getEnv("JWT_AUDIENCE", "blog-client"),
			TTL:        getEnvDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
			RefreshTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			KID:        getEnv("JWT_KID", "blog-key"),
		},
	}
}

// Validate reports the first unusable setting.
func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BLOG_API_URL must be an absolute url, got %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("BLOG_API_TIMEOUT must be positive")
	}
	switch c.StoreBackend {
	case StoreFile:
		if c.StorePath == "" {
			return fmt.Errorf("SESSION_FILE is required for the file store")
		}
	case StoreRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.StoreBackend)
	}
	return nil
}

func (c StubConfig) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.JWT.TTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.TTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}
	return nil
}

func loadRedis() RedisConfig {
	return RedisConfig{
		Addrs:       getEnvSlice("REDIS_ADDR", []string{"localhost:6379"}),
		Password:    getEnv("REDIS_PASS", ""),
		DB:          getEnvInt("REDIS_DB", 0),
		ClusterMode: getEnvBool("REDIS_CLUSTER", false),
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "blog-session", "session.json")
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
