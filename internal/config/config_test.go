package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitialize(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
	if used := ConfigFileUsed(); used != "" {
		t.Fatalf("expected no config file, got %q", used)
	}
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{KeyDatabaseBackend, "memory", func(k string) interface{} { return GetString(k) }},
		{KeyEnhanceWebhookURL, "", func(k string) interface{} { return GetString(k) }},
		{KeyEnhanceDefaultEmail, "demo@example.com", func(k string) interface{} { return GetString(k) }},
		{KeyEnhanceTimeout, time.Duration(0), func(k string) interface{} { return GetDuration(k) }},
		{KeyEventsPollInterval, 2 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{KeyUIAddr, "127.0.0.1:8080", func(k string) interface{} { return GetString(k) }},
		{KeyUISessionTTL, 30 * time.Minute, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"TASKBOARD_DATABASE_BACKEND", KeyDatabaseBackend, "mysql", "mysql", func(k string) interface{} { return GetString(k) }},
		{"TASKBOARD_WEBHOOK_URL", KeyEnhanceWebhookURL, "https://hooks.example.com/a", "https://hooks.example.com/a", func(k string) interface{} { return GetString(k) }},
		{"N8N_WEBHOOK_URL", KeyEnhanceWebhookURL, "https://n8n.example.com/b", "https://n8n.example.com/b", func(k string) interface{} { return GetString(k) }},
		{"TASKBOARD_ENHANCE_TIMEOUT", KeyEnhanceTimeout, "5s", 5 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"TASKBOARD_POLL_INTERVAL", KeyEventsPollInterval, "0", time.Duration(0), func(k string) interface{} { return GetDuration(k) }},
		{"TASKBOARD_ADDR", KeyUIAddr, ":9999", ":9999", func(k string) interface{} { return GetString(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			t.Setenv(tt.envVar, tt.value)

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestWebhookEnvPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TASKBOARD_WEBHOOK_URL", "https://primary.example.com")
	t.Setenv("N8N_WEBHOOK_URL", "https://fallback.example.com")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := Enhance().WebhookURL; got != "https://primary.example.com" {
		t.Fatalf("WebhookURL = %q, want the TASKBOARD_ variable to win", got)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := `database:
  backend: mysql
  dsn: "app@tcp(db:3306)/tasks"
ui:
  addr: ":8088"
  session-ttl: 5m
`
	if err := os.WriteFile(filepath.Join(dir, "taskboard.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if !strings.HasSuffix(ConfigFileUsed(), "taskboard.yaml") {
		t.Fatalf("ConfigFileUsed() = %q", ConfigFileUsed())
	}

	db := Database()
	if db.Backend != "mysql" || db.DSN != "app@tcp(db:3306)/tasks" {
		t.Fatalf("unexpected database settings %+v", db)
	}
	ui := UI()
	if ui.Addr != ":8088" || ui.SessionTTL != 5*time.Minute {
		t.Fatalf("unexpected ui settings %+v", ui)
	}
	// Environment beats the file.
	t.Setenv("TASKBOARD_ADDR", ":7000")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := UI().Addr; got != ":7000" {
		t.Fatalf("env override: Addr = %q", got)
	}
}

func TestInitializeFromFileMissing(t *testing.T) {
	if err := InitializeFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TASKBOARD_DATABASE_BACKEND", "postgres")
	t.Setenv("TASKBOARD_SESSION_TTL", "soon")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	err := Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{KeyDatabaseBackend, KeyUISessionTTL} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error %q does not mention %s", err, want)
		}
	}
}

func TestEffectiveMasksSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TASKBOARD_DATABASE_PASSWORD", "hunter2")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	eff := Effective()
	db, ok := eff["database"].(map[string]any)
	if !ok {
		t.Fatalf("missing database section: %v", eff)
	}
	if db["password"] != Redacted {
		t.Fatalf("password not masked: %v", db["password"])
	}
	if db["backend"] != "memory" {
		t.Fatalf("backend = %v", db["backend"])
	}
}
