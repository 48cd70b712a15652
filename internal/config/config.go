package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Cloud         CloudConfig
	Local         LocalConfig
	Ask           AskConfig
	Sessions      SessionConfig
	ObjectStore   ObjectStoreConfig
	MCP           MCPConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes the databases users may query. DSNTemplate may carry a
// {database} placeholder that is replaced with the selected database name.
type DatabaseConfig struct {
	Dialect         string
	DSNTemplate     string
	Allowed         []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type CloudConfig struct {
	BaseURL string
	APIKey  string
	Models  []string
	Timeout time.Duration
}

type LocalConfig struct {
	BaseURL string
	Models  []string
	Timeout time.Duration
}

type AskConfig struct {
	RatePerSecond float64
	Burst         int
}

type SessionConfig struct {
	Capacity int
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
	PresignExpiry    time.Duration
}

type MCPConfig struct {
	Enabled bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// LoadFromEnv reads an optional .env file from the working directory before
// resolving configuration from the process environment. Variables already set in
// the environment win over the file.
func LoadFromEnv(serviceName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "ASKDB_DB_DIALECT", &cfg.Database.Dialect) },
		func() error { return applyString(lookup, "ASKDB_DB_DSN_TEMPLATE", &cfg.Database.DSNTemplate) },
		func() error { return applyList(lookup, "ASKDB_ALLOWED_DATABASES", &cfg.Database.Allowed) },
		func() error { return applyInt(lookup, "ASKDB_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "ASKDB_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error { return applyDuration(lookup, "ASKDB_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "ASKDB_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime) },
		func() error { return applyDuration(lookup, "ASKDB_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyString(lookup, "GROQ_API_KEY", &cfg.Cloud.APIKey) },
		func() error { return applyString(lookup, "ASKDB_CLOUD_API_KEY", &cfg.Cloud.APIKey) },
		func() error { return applyString(lookup, "ASKDB_CLOUD_BASE_URL", &cfg.Cloud.BaseURL) },
		func() error { return applyList(lookup, "ASKDB_CLOUD_MODELS", &cfg.Cloud.Models) },
		func() error { return applyDuration(lookup, "ASKDB_CLOUD_TIMEOUT", &cfg.Cloud.Timeout) },
		func() error { return applyString(lookup, "ASKDB_LOCAL_BASE_URL", &cfg.Local.BaseURL) },
		func() error { return applyList(lookup, "ASKDB_LOCAL_MODELS", &cfg.Local.Models) },
		func() error { return applyDuration(lookup, "ASKDB_LOCAL_TIMEOUT", &cfg.Local.Timeout) },
		func() error { return applyFloat(lookup, "ASKDB_ASK_RATE_PER_SECOND", &cfg.Ask.RatePerSecond) },
		func() error { return applyInt(lookup, "ASKDB_ASK_BURST", &cfg.Ask.Burst) },
		func() error { return applyInt(lookup, "ASKDB_SESSION_CAPACITY", &cfg.Sessions.Capacity) },
		func() error { return applyBool(lookup, "ASKDB_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "ASKDB_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "ASKDB_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "ASKDB_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyDuration(lookup, "ASKDB_OBJECTSTORE_PRESIGN_EXPIRY", &cfg.ObjectStore.PresignExpiry) },
		func() error { return applyBool(lookup, "ASKDB_MCP_ENABLED", &cfg.MCP.Enabled) },
		func() error { return applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	cfg.Database.Dialect = strings.ToLower(cfg.Database.Dialect)
	if !isValidDialect(cfg.Database.Dialect) {
		return Config{}, fmt.Errorf("invalid ASKDB_DB_DIALECT: %q", cfg.Database.Dialect)
	}
	if cfg.Sessions.Capacity <= 0 {
		return Config{}, fmt.Errorf("session capacity must be positive")
	}
	if cfg.Ask.RatePerSecond < 0 || cfg.Ask.Burst < 0 {
		return Config{}, fmt.Errorf("ask rate limit must not be negative")
	}
	if cfg.Ask.RatePerSecond > 0 && cfg.Ask.Burst < 1 {
		return Config{}, fmt.Errorf("ASKDB_ASK_BURST must be at least 1 when ASKDB_ASK_RATE_PER_SECOND is set")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Dialect:         "mysql",
			DSNTemplate:     "root:root@tcp(localhost:3306)/{database}",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Cloud: CloudConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Models: []string{
				"llama-3.3-70b-versatile",
				"llama-3.1-70b-versatile",
				"llama-3.1-8b-instant",
				"mixtral-8x7b-32768",
				"gemma2-9b-it",
			},
		},
		Local: LocalConfig{
			BaseURL: "http://localhost:11434",
			Models: []string{
				"llama3.2:3b",
				"qwen3:4b",
				"gemma2",
			},
			Timeout: 30 * time.Second,
		},
		Ask: AskConfig{
			RatePerSecond: 2,
			Burst:         5,
		},
		Sessions: SessionConfig{
			Capacity: 1024,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "askdb-exports",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "exports",
			AutoCreateBucket: true,
			PresignExpiry:    15 * time.Minute,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Ask.RatePerSecond = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidDialect(dialect string) bool {
	switch dialect {
	case "mysql", "postgres", "duckdb", "sqlserver", "sqlite":
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyList splits a comma separated value, dropping empty items.
func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	*dst = items
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
