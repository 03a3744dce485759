package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// DefaultPath is where Load looks for the JSON configuration file.
var DefaultPath = filepath.Join("config", "config.json")

// AppConfig holds file and environment driven configuration values.
// Secrets have no defaults and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for feed caching and token revocation
	RedisEnabled    bool
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheTTLSeconds int
	// NATS for domain events; empty URL disables publishing
	NATSURL     string
	NATSSubject string
	// Feeds
	FollowFeedOrder string
	// Uploads
	UploadsDir            string
	UploadsMaxMB          int
	UploadsTTLMinutes     int
	UploadsCleanupEnabled bool
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

const (
	// FollowOrderAuthor groups the followed feed by author, newest first within each author.
	FollowOrderAuthor = "author"
	// FollowOrderRecent orders the followed feed strictly newest first.
	FollowOrderRecent = "recent"
)

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// envBindings maps config keys to the flat environment variable names operators already use.
var envBindings = map[string]string{
	"app.port":                "APP_PORT",
	"app.jwt_secret":          "JWT_SECRET",
	"app.token_ttl_hours":     "TOKEN_TTL_HOURS",
	"app.rate_limit":          "RATE_LIMIT_PER_MINUTE",
	"app.allowed_origins":     "CORS_ALLOWED_ORIGINS",
	"admin.usernames":         "ADMIN_USERNAMES",
	"gin.mode":                "GIN_MODE",
	"gin.log_path":            "GIN_PATH",
	"database.driver":         "DB_DRIVER",
	"database.uri":            "DATABASE_URI",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.user":           "DB_USER",
	"database.password":       "DB_PASSWORD",
	"database.name":           "DB_NAME",
	"redis.enabled":           "REDIS_ENABLED",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.db":                "REDIS_DB",
	"redis.password":          "REDIS_PASSWORD",
	"redis.cache_ttl_seconds": "CACHE_TTL_SECONDS",
	"nats.url":                "NATS_URL",
	"nats.subject_prefix":     "NATS_SUBJECT_PREFIX",
	"feed.follow_order":       "FOLLOW_FEED_ORDER",
	"uploads.dir":             "UPLOADS_DIR",
	"uploads.max_mb":          "UPLOADS_MAX_MB",
	"uploads.ttl_minutes":     "UPLOADS_TTL_MINUTES",
	"uploads.cleanup_enabled": "UPLOADS_CLEANUP_ENABLED",
	"log.level":               "LOG_LEVEL",
	"log.path":                "LOG_PATH",
	"log.max_size_mb":         "LOG_MAX_SIZE_MB",
	"log.max_backups":         "LOG_MAX_BACKUPS",
	"log.max_age_days":        "LOG_MAX_AGE_DAYS",
	"log.compress":            "LOG_COMPRESS",
}

// Load reads the configuration once from DefaultPath and the environment.
// A malformed file is reported to stderr and ignored.
func Load() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()

	c, err := LoadFile(DefaultPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, falling back to defaults and environment\n", err)
		c, _ = LoadFile("")
	}
	Set(c)
	return c
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Set installs c as the process configuration.
func Set(c AppConfig) {
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

// LoadFile builds an AppConfig from path (skipped when empty or missing),
// defaults, and environment overrides, in increasing precedence.
func LoadFile(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	return AppConfig{
		AppPort:               v.GetString("app.port"),
		JWTSecret:             v.GetString("app.jwt_secret"),
		TokenTTLHours:         v.GetInt("app.token_ttl_hours"),
		RateLimitPerMinute:    v.GetInt("app.rate_limit"),
		AllowedOrigins:        splitList(v.GetStringSlice("app.allowed_origins")),
		AdminUsernames:        splitList(v.GetStringSlice("admin.usernames")),
		GinMode:               v.GetString("gin.mode"),
		GinPath:               v.GetString("gin.log_path"),
		DBDriver:              strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:           v.GetString("database.uri"),
		DBHost:                v.GetString("database.host"),
		DBPort:                v.GetString("database.port"),
		DBUser:                v.GetString("database.user"),
		DBPassword:            v.GetString("database.password"),
		DBName:                v.GetString("database.name"),
		RedisEnabled:          v.GetBool("redis.enabled"),
		RedisHost:             v.GetString("redis.host"),
		RedisPort:             v.GetInt("redis.port"),
		RedisDB:               v.GetInt("redis.db"),
		RedisPassword:         v.GetString("redis.password"),
		CacheTTLSeconds:       v.GetInt("redis.cache_ttl_seconds"),
		NATSURL:               v.GetString("nats.url"),
		NATSSubject:           v.GetString("nats.subject_prefix"),
		FollowFeedOrder:       strings.ToLower(v.GetString("feed.follow_order")),
		UploadsDir:            v.GetString("uploads.dir"),
		UploadsMaxMB:          v.GetInt("uploads.max_mb"),
		UploadsTTLMinutes:     v.GetInt("uploads.ttl_minutes"),
		UploadsCleanupEnabled: v.GetBool("uploads.cleanup_enabled"),
		LogLevel:              v.GetString("log.level"),
		LogPath:               v.GetString("log.path"),
		LogMaxSizeMB:          v.GetInt("log.max_size_mb"),
		LogMaxBackups:         v.GetInt("log.max_backups"),
		LogMaxAgeDays:         v.GetInt("log.max_age_days"),
		LogCompress:           v.GetBool("log.compress"),
	}, nil
}

// Validate reports settings the server cannot start without.
func (c AppConfig) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	switch c.FollowFeedOrder {
	case FollowOrderAuthor, FollowOrderRecent:
	default:
		return fmt.Errorf("unsupported follow feed order %q", c.FollowFeedOrder)
	}
	return nil
}

// IsAdmin reports whether username is configured as an administrator.
func (c AppConfig) IsAdmin(username string) bool {
	if username == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.token_ttl_hours", 72)
	v.SetDefault("app.rate_limit", 60)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.log_path", "logs/go_gin.log")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "blogfeed")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.cache_ttl_seconds", 3600)
	v.SetDefault("nats.subject_prefix", "blogfeed")
	v.SetDefault("feed.follow_order", FollowOrderAuthor)
	v.SetDefault("uploads.dir", filepath.Join("static", "uploads"))
	v.SetDefault("uploads.max_mb", 10)
	v.SetDefault("uploads.ttl_minutes", 60)
	v.SetDefault("uploads.cleanup_enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

// splitList accepts both JSON arrays and comma separated environment values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
