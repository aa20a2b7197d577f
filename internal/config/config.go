package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	MySQL         MySQLConfig
	Session       SessionConfig
	Schema        SchemaConfig
	AI            AIConfig
	Export        ExportConfig
	ObjectStore   ObjectStoreConfig
	Audit         AuditConfig
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

// MySQLConfig holds defaults applied to connection requests that omit them.
type MySQLConfig struct {
	DefaultHost    string
	DefaultPort    int
	ConnectTimeout time.Duration
}

type SessionConfig struct {
	IdleTimeout  time.Duration
	MaxSessions  int
	ReapInterval time.Duration
}

type SchemaConfig struct {
	SampleRows int
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	// Temperature is sent only when set; some models reject any override.
	Temperature *float64
	Timeout     time.Duration
	MaxTokens   int
}

type ExportConfig struct {
	ArchiveEnabled bool
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AuditConfig struct {
	Enabled         bool
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
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

	appliers := []func() error{
		func() error { return applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "ASKDB_MYSQL_DEFAULT_HOST", &cfg.MySQL.DefaultHost) },
		func() error { return applyInt(lookup, "ASKDB_MYSQL_DEFAULT_PORT", &cfg.MySQL.DefaultPort) },
		func() error { return applyDuration(lookup, "ASKDB_MYSQL_CONNECT_TIMEOUT", &cfg.MySQL.ConnectTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout) },
		func() error { return applyInt(lookup, "ASKDB_SESSION_MAX", &cfg.Session.MaxSessions) },
		func() error { return applyDuration(lookup, "ASKDB_SESSION_REAP_INTERVAL", &cfg.Session.ReapInterval) },
		func() error { return applyInt(lookup, "ASKDB_SCHEMA_SAMPLE_ROWS", &cfg.Schema.SampleRows) },
		func() error { return applyString(lookup, "ASKDB_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "ASKDB_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "ASKDB_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "ASKDB_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyOptionalFloat(lookup, "ASKDB_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "ASKDB_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "ASKDB_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyBool(lookup, "ASKDB_EXPORT_ARCHIVE_ENABLED", &cfg.Export.ArchiveEnabled) },
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
		func() error { return applyBool(lookup, "ASKDB_AUDIT_ENABLED", &cfg.Audit.Enabled) },
		func() error { return applyString(lookup, "ASKDB_AUDIT_DSN", &cfg.Audit.DSN) },
		func() error { return applyInt(lookup, "ASKDB_AUDIT_MAX_OPEN_CONNS", &cfg.Audit.MaxOpenConns) },
		func() error { return applyInt(lookup, "ASKDB_AUDIT_MAX_IDLE_CONNS", &cfg.Audit.MaxIdleConns) },
		func() error { return applyDuration(lookup, "ASKDB_AUDIT_CONN_MAX_IDLE_TIME", &cfg.Audit.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "ASKDB_AUDIT_CONN_MAX_LIFETIME", &cfg.Audit.ConnMaxLifetime) },
		func() error { return applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if !isValidProvider(cfg.AI.Provider) {
		return Config{}, fmt.Errorf("invalid ASKDB_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey == "" {
		if raw, ok := lookup(providerKeyVariable(cfg.AI.Provider)); ok {
			cfg.AI.APIKey = strings.TrimSpace(raw)
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Schema.SampleRows < 0 {
		return Config{}, fmt.Errorf("ASKDB_SCHEMA_SAMPLE_ROWS must not be negative")
	}
	if cfg.MySQL.DefaultPort <= 0 || cfg.MySQL.DefaultPort > 65535 {
		return Config{}, fmt.Errorf("invalid ASKDB_MYSQL_DEFAULT_PORT: %d", cfg.MySQL.DefaultPort)
	}
	if cfg.Audit.Enabled && cfg.Audit.DSN == "" {
		return Config{}, fmt.Errorf("ASKDB_AUDIT_DSN is required when audit is enabled")
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
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		MySQL: MySQLConfig{
			DefaultHost:    "localhost",
			DefaultPort:    3306,
			ConnectTimeout: 5 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:  30 * time.Minute,
			MaxSessions:  16,
			ReapInterval: time.Minute,
		},
		Schema: SchemaConfig{
			SampleRows: 3,
		},
		AI: AIConfig{
			Provider:  ProviderGemini,
			Timeout:   30 * time.Second,
			MaxTokens: 1024,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "askdb-exports",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			AutoCreateBucket: true,
		},
		Audit: AuditConfig{
			DSN:             "",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
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

func isValidProvider(provider string) bool {
	switch provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return true
	default:
		return false
	}
}

// providerKeyVariable names the vendor's conventional credential variable,
// consulted when ASKDB_AI_API_KEY is unset.
func providerKeyVariable(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GOOGLE_API_KEY"
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

func applyOptionalFloat(lookup LookupFunc, key string, dst **float64) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = &value
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
