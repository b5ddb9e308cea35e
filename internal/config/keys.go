package config

import (
	"fmt"
	"strings"
	"time"
)

// Configuration keys.
const (
	KeyDatabaseBackend  = "database.backend"
	KeyDatabaseDSN      = "database.dsn"
	KeyDatabasePassword = "database.password"

	KeyEnhanceWebhookURL   = "enhance.webhook-url"
	KeyEnhanceDefaultEmail = "enhance.default-email"
	KeyEnhanceTimeout      = "enhance.timeout"
	KeyEnhanceRelayURL     = "enhance.relay-url"

	KeyEventsNATSURL      = "events.nats-url"
	KeyEventsNATSSubject  = "events.nats-subject"
	KeyEventsPollInterval = "events.poll-interval"

	KeyUIAddr         = "ui.addr"
	KeyUIDefaultEmail = "ui.default-email"
	KeyUISessionTTL   = "ui.session-ttl"

	KeyEnhancerAddr    = "enhancer.addr"
	KeyEnhancerTaskAPI = "enhancer.task-api-url"
	KeyAnthropicModel  = "anthropic.model"
	KeyAnthropicKey    = "anthropic.api-key"
)

// Key describes one configuration setting.
type Key struct {
	Key         string   // Full key name (e.g., "database.dsn")
	Description string   // Human-readable description
	EnvVars     []string // Environment variables, first match wins
	Secret      bool     // Masked by "config show"
	Default     any      // Default value (nil = no default)
	Validate    func(string) error
}

// Keys lists every supported setting.
var Keys = []Key{
	{
		Key:         KeyDatabaseBackend,
		Description: "Storage backend (memory, mysql)",
		EnvVars:     []string{"TASKBOARD_DATABASE_BACKEND"},
		Default:     "memory",
		Validate:    validateBackend,
	},
	{
		Key:         KeyDatabaseDSN,
		Description: "MySQL DSN (user@tcp(host:port)/db)",
		EnvVars:     []string{"TASKBOARD_DATABASE_DSN"},
		Default:     "",
	},
	{
		Key:         KeyDatabasePassword,
		Description: "Database password, injected into the DSN",
		EnvVars:     []string{"TASKBOARD_DATABASE_PASSWORD"},
		Secret:      true,
		Default:     "",
	},
	{
		Key:         KeyEnhanceWebhookURL,
		Description: "Automation webhook that enhances task titles",
		EnvVars:     []string{"TASKBOARD_WEBHOOK_URL", "N8N_WEBHOOK_URL"},
		Default:     "",
	},
	{
		Key:         KeyEnhanceDefaultEmail,
		Description: "Email sent to the webhook when the request carries none",
		EnvVars:     []string{"TASKBOARD_DEFAULT_EMAIL"},
		Default:     "demo@example.com",
	},
	{
		Key:         KeyEnhanceTimeout,
		Description: "Outbound webhook timeout (0 = none)",
		EnvVars:     []string{"TASKBOARD_ENHANCE_TIMEOUT"},
		Default:     time.Duration(0),
		Validate:    validateDuration,
	},
	{
		Key:         KeyEnhanceRelayURL,
		Description: "Relay endpoint used by CLI commands (e.g. http://127.0.0.1:8080/api/enhance-task)",
		EnvVars:     []string{"TASKBOARD_RELAY_URL"},
		Default:     "",
	},
	{
		Key:         KeyEventsNATSURL,
		Description: "NATS server for cross-process change notifications",
		EnvVars:     []string{"TASKBOARD_NATS_URL"},
		Default:     "",
	},
	{
		Key:         KeyEventsNATSSubject,
		Description: "NATS subject for change notifications",
		EnvVars:     []string{"TASKBOARD_NATS_SUBJECT"},
		Default:     "taskboard.tasks.events",
	},
	{
		Key:         KeyEventsPollInterval,
		Description: "Database change polling interval (0 disables)",
		EnvVars:     []string{"TASKBOARD_POLL_INTERVAL"},
		Default:     2 * time.Second,
		Validate:    validateDuration,
	},
	{
		Key:         KeyUIAddr,
		Description: "Web server listen address",
		EnvVars:     []string{"TASKBOARD_ADDR"},
		Default:     "127.0.0.1:8080",
	},
	{
		Key:         KeyUIDefaultEmail,
		Description: "Initial email of a new browser session",
		EnvVars:     []string{"TASKBOARD_UI_EMAIL"},
		Default:     "demo@example.com",
	},
	{
		Key:         KeyUISessionTTL,
		Description: "Idle browser session eviction",
		EnvVars:     []string{"TASKBOARD_SESSION_TTL"},
		Default:     30 * time.Minute,
		Validate:    validateDuration,
	},
	{
		Key:         KeyEnhancerAddr,
		Description: "Listen address of the reference enhancement webhook",
		EnvVars:     []string{"TASKBOARD_ENHANCER_ADDR"},
		Default:     "127.0.0.1:8090",
	},
	{
		Key:         KeyEnhancerTaskAPI,
		Description: "Task API the enhancement webhook writes results to (empty = write to the database directly)",
		EnvVars:     []string{"TASKBOARD_TASK_API_URL"},
		Default:     "",
	},
	{
		Key:         KeyAnthropicModel,
		Description: "Model used by the reference enhancement webhook",
		EnvVars:     []string{"TASKBOARD_ANTHROPIC_MODEL"},
		Default:     "claude-3-5-haiku-latest",
	},
	{
		Key:         KeyAnthropicKey,
		Description: "Anthropic API key",
		EnvVars:     []string{"ANTHROPIC_API_KEY"},
		Secret:      true,
		Default:     "",
	},
}

// keyMap is a lookup table built from Keys.
var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the definition for key, or nil.
func LookupKey(key string) *Key {
	return keyMap[key]
}

func validateBackend(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "memory", "mysql":
		return nil
	}
	return fmt.Errorf("unsupported backend %q (supported: memory, mysql)", value)
}

func validateDuration(value string) error {
	if value == "" || value == "0" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return fmt.Errorf("duration %q must not be negative", value)
	}
	return nil
}
