package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("askdb-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.MySQL.DefaultHost != "localhost" || cfg.MySQL.DefaultPort != 3306 {
		t.Fatalf("MySQL defaults = %s:%d", cfg.MySQL.DefaultHost, cfg.MySQL.DefaultPort)
	}
	if cfg.Schema.SampleRows != 3 {
		t.Fatalf("Schema.SampleRows = %d", cfg.Schema.SampleRows)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "" {
		t.Fatalf("AI.APIKey = %q, want empty", cfg.AI.APIKey)
	}
	if cfg.AI.Temperature != nil {
		t.Fatalf("AI.Temperature = %v, want unset", *cfg.AI.Temperature)
	}
	if cfg.Session.MaxSessions != 16 {
		t.Fatalf("Session.MaxSessions = %d", cfg.Session.MaxSessions)
	}
	if cfg.Export.ArchiveEnabled {
		t.Fatal("Export.ArchiveEnabled should default to false")
	}
	if cfg.Audit.Enabled {
		t.Fatal("Audit.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("askdb-api", mapLookup(map[string]string{"ASKDB_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("askdb-api", mapLookup(map[string]string{
		"ASKDB_PROFILE":                "test",
		"ASKDB_SERVICE_NAME":           "askdb-custom",
		"ASKDB_HTTP_ADDR":              ":9999",
		"ASKDB_HTTP_READ_TIMEOUT":      "2s",
		"ASKDB_MYSQL_DEFAULT_HOST":     "db.internal",
		"ASKDB_MYSQL_DEFAULT_PORT":     "3307",
		"ASKDB_MYSQL_CONNECT_TIMEOUT":  "9s",
		"ASKDB_SESSION_IDLE_TIMEOUT":   "5m",
		"ASKDB_SESSION_MAX":            "2",
		"ASKDB_SCHEMA_SAMPLE_ROWS":     "0",
		"ASKDB_AI_PROVIDER":            "OpenAI",
		"ASKDB_AI_BASE_URL":            "https://api.example.com",
		"ASKDB_AI_API_KEY":             "secret-key",
		"ASKDB_AI_MODEL":               "gpt-5.2",
		"ASKDB_AI_TEMPERATURE":         "0.3",
		"ASKDB_AI_TIMEOUT":             "21s",
		"ASKDB_AI_MAX_TOKENS":          "256",
		"ASKDB_EXPORT_ARCHIVE_ENABLED": "true",
		"ASKDB_OBJECTSTORE_BUCKET":     "exports-prod",
		"ASKDB_AUDIT_ENABLED":          "true",
		"ASKDB_AUDIT_DSN":              "postgres://example",
		"ASKDB_AUDIT_MAX_OPEN_CONNS":   "8",
		"ASKDB_LOG_LEVEL":              "error",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "askdb-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.MySQL.DefaultHost != "db.internal" || cfg.MySQL.DefaultPort != 3307 || cfg.MySQL.ConnectTimeout != 9*time.Second {
		t.Fatalf("MySQL = %+v", cfg.MySQL)
	}
	if cfg.Session.IdleTimeout != 5*time.Minute || cfg.Session.MaxSessions != 2 {
		t.Fatalf("Session = %+v", cfg.Session)
	}
	if cfg.Schema.SampleRows != 0 {
		t.Fatalf("Schema.SampleRows = %d", cfg.Schema.SampleRows)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "secret-key" || cfg.AI.Model != "gpt-5.2" || cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.3 || cfg.AI.Timeout != 21*time.Second || cfg.AI.MaxTokens != 256 {
		t.Fatalf("AI tuning = %+v", cfg.AI)
	}
	if !cfg.Export.ArchiveEnabled || cfg.ObjectStore.Bucket != "exports-prod" {
		t.Fatalf("Export/ObjectStore = %+v %+v", cfg.Export, cfg.ObjectStore)
	}
	if !cfg.Audit.Enabled || cfg.Audit.DSN != "postgres://example" || cfg.Audit.MaxOpenConns != 8 {
		t.Fatalf("Audit = %+v", cfg.Audit)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadFallsBackToProviderKeyVariable(t *testing.T) {
	cfg, err := Load("askdb-api", mapLookup(map[string]string{
		"GOOGLE_API_KEY": " google-key ",
		"OPENAI_API_KEY": "openai-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "google-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("askdb-api", mapLookup(map[string]string{
		"ASKDB_AI_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY": "anthropic-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "anthropic-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadPrefersExplicitAPIKey(t *testing.T) {
	cfg, err := Load("askdb-api", mapLookup(map[string]string{
		"ASKDB_AI_API_KEY": "explicit",
		"GOOGLE_API_KEY":   "fallback",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"ASKDB_PROFILE": "oops"},
		{"ASKDB_HTTP_READ_TIMEOUT": "NaN"},
		{"ASKDB_MYSQL_DEFAULT_PORT": "oops"},
		{"ASKDB_MYSQL_DEFAULT_PORT": "70000"},
		{"ASKDB_SESSION_MAX": "many"},
		{"ASKDB_SCHEMA_SAMPLE_ROWS": "-1"},
		{"ASKDB_AI_PROVIDER": "parrot"},
		{"ASKDB_AI_TEMPERATURE": "bad"},
		{"ASKDB_EXPORT_ARCHIVE_ENABLED": "not-bool"},
		{"ASKDB_AUDIT_ENABLED": "true"},
		{"ASKDB_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("askdb-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
