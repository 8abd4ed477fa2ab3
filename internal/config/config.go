package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the YAML file read when PROMPTLIB_CONFIG is unset.
const DefaultConfigFile = "promptlib.yaml"

// Storage backends accepted in StorageBackend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
)

// Config captures all runtime configuration.
type Config struct {
	Port             string `yaml:"port"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
	IdleTimeoutSecs  int    `yaml:"idle_timeout_secs"`

	// Scope prefixes the storage keys; one scope is one profile.
	Scope          string `yaml:"scope"`
	StorageBackend string `yaml:"storage_backend"`
	MemoryQuota    int    `yaml:"memory_quota_bytes"`
	FilePath       string `yaml:"file_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	SQLitePath string `yaml:"sqlite_path"`

	DBURL             string `yaml:"db_url"`
	DBMaxConns        int    `yaml:"db_max_conns"`
	DBMinConns        int    `yaml:"db_min_conns"`
	DBMaxIdleSecs     int    `yaml:"db_max_conn_idle_secs"`
	DBMaxLifeSecs     int    `yaml:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs int    `yaml:"db_conn_timeout_secs"`
	DBStatementCache  int    `yaml:"db_statement_cache_capacity"`

	NATSURL    string `yaml:"nats_url"`
	NATSBucket string `yaml:"nats_bucket"`

	CacheEnabled  bool  `yaml:"cache_enabled"`
	CacheMaxBytes int64 `yaml:"cache_max_bytes"`
	CacheTTLSecs  int   `yaml:"cache_ttl_secs"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:              "8080",
		ReadTimeoutSecs:   15,
		WriteTimeoutSecs:  15,
		IdleTimeoutSecs:   60,
		Scope:             "promptLibrary",
		StorageBackend:    BackendFile,
		FilePath:          "promptlib.json",
		RedisAddr:         "localhost:6379",
		SQLitePath:        "promptlib.db",
		DBMaxConns:        20,
		DBMinConns:        2,
		DBMaxIdleSecs:     300,
		DBMaxLifeSecs:     3600,
		DBConnTimeoutSecs: 10,
		DBStatementCache:  256,
		NATSURL:           "nats://localhost:4222",
		NATSBucket:        "promptlib",
		CacheMaxBytes:     16 << 20,
		CacheTTLSecs:      300,
		LogLevel:          "info",
		LogMaxSizeMB:      100,
		LogMaxBackups:     3,
		LogMaxAgeDays:     28,
	}
}

// Load reads .env, then the YAML file named by PROMPTLIB_CONFIG (default
// promptlib.yaml), then environment variables, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(getEnv("PROMPTLIB_CONFIG", DefaultConfigFile))
}

// LoadFrom applies defaults < YAML < env. A missing YAML file is not an error.
func LoadFrom(yamlPath string) (Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return Config{}, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setInt(&cfg.ReadTimeoutSecs, "SERVER_READ_TIMEOUT")
	setInt(&cfg.WriteTimeoutSecs, "SERVER_WRITE_TIMEOUT")
	setInt(&cfg.IdleTimeoutSecs, "SERVER_IDLE_TIMEOUT")

	setString(&cfg.Scope, "PROMPTLIB_SCOPE")
	setString(&cfg.StorageBackend, "STORAGE_BACKEND")
	setInt(&cfg.MemoryQuota, "MEMORY_QUOTA_BYTES")
	setString(&cfg.FilePath, "STORAGE_FILE")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")

	setString(&cfg.SQLitePath, "SQLITE_PATH")

	setString(&cfg.DBURL, "DB_URL")
	setInt(&cfg.DBMaxConns, "DB_MAX_CONNS")
	setInt(&cfg.DBMinConns, "DB_MIN_CONNS")
	setInt(&cfg.DBMaxIdleSecs, "DB_MAX_CONN_IDLE_SECS")
	setInt(&cfg.DBMaxLifeSecs, "DB_MAX_CONN_LIFETIME_SECS")
	setInt(&cfg.DBConnTimeoutSecs, "DB_CONN_TIMEOUT_SECS")
	setInt(&cfg.DBStatementCache, "DB_STATEMENT_CACHE_CAPACITY")

	setString(&cfg.NATSURL, "NATS_URL")
	setString(&cfg.NATSBucket, "NATS_BUCKET")

	setBool(&cfg.CacheEnabled, "CACHE_ENABLED")
	setInt64(&cfg.CacheMaxBytes, "CACHE_MAX_BYTES")
	setInt(&cfg.CacheTTLSecs, "CACHE_TTL_SECS")

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setInt(&cfg.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&cfg.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&cfg.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&cfg.LogCompress, "LOG_COMPRESS")
}

func validate(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if strings.TrimSpace(cfg.Scope) == "" {
		return fmt.Errorf("PROMPTLIB_SCOPE must not be blank")
	}
	if cfg.MemoryQuota < 0 {
		return fmt.Errorf("MEMORY_QUOTA_BYTES must be non-negative")
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendFile:
		if cfg.FilePath == "" {
			return fmt.Errorf("STORAGE_FILE is required for the file backend")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
		if cfg.RedisDB < 0 {
			return fmt.Errorf("REDIS_DB must be non-negative")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if cfg.DBURL == "" {
			return fmt.Errorf("DB_URL is required for the postgres backend")
		}
		if cfg.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	case BackendNATS:
		if cfg.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required for the nats backend")
		}
		if cfg.NATSBucket == "" {
			return fmt.Errorf("NATS_BUCKET is required for the nats backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not one of memory, file, redis, sqlite, postgres, nats", cfg.StorageBackend)
	}

	if cfg.CacheEnabled && cfg.CacheMaxBytes <= 0 {
		return fmt.Errorf("CACHE_MAX_BYTES must be positive when CACHE_ENABLED is set")
	}
	if cfg.CacheTTLSecs < 0 {
		return fmt.Errorf("CACHE_TTL_SECS must be non-negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
