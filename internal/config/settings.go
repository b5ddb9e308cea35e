package config

import (
	"strings"
	"time"
)

// DatabaseSettings selects and locates the storage backend.
type DatabaseSettings struct {
	Backend  string
	DSN      string
	Password string
}

// Database returns the database.* settings.
func Database() DatabaseSettings {
	return DatabaseSettings{
		Backend:  strings.ToLower(strings.TrimSpace(GetString(KeyDatabaseBackend))),
		DSN:      GetString(KeyDatabaseDSN),
		Password: GetString(KeyDatabasePassword),
	}
}

// EnhanceSettings configures the enhancement relay and its clients.
type EnhanceSettings struct {
	WebhookURL   string
	DefaultEmail string
	Timeout      time.Duration
	RelayURL     string
}

// Enhance returns the enhance.* settings.
func Enhance() EnhanceSettings {
	return EnhanceSettings{
		WebhookURL:   strings.TrimSpace(GetString(KeyEnhanceWebhookURL)),
		DefaultEmail: GetString(KeyEnhanceDefaultEmail),
		Timeout:      GetDuration(KeyEnhanceTimeout),
		RelayURL:     strings.TrimSpace(GetString(KeyEnhanceRelayURL)),
	}
}

// EventsSettings configures change notification transports.
type EventsSettings struct {
	NATSURL      string
	NATSSubject  string
	PollInterval time.Duration
}

// Events returns the events.* settings.
func Events() EventsSettings {
	return EventsSettings{
		NATSURL:      strings.TrimSpace(GetString(KeyEventsNATSURL)),
		NATSSubject:  GetString(KeyEventsNATSSubject),
		PollInterval: GetDuration(KeyEventsPollInterval),
	}
}

// UISettings configures the web front end.
type UISettings struct {
	Addr         string
	DefaultEmail string
	SessionTTL   time.Duration
}

// UI returns the ui.* settings.
func UI() UISettings {
	return UISettings{
		Addr:         GetString(KeyUIAddr),
		DefaultEmail: GetString(KeyUIDefaultEmail),
		SessionTTL:   GetDuration(KeyUISessionTTL),
	}
}

// EnhancerSettings configures the reference enhancement webhook.
type EnhancerSettings struct {
	Addr       string
	TaskAPIURL string
	Model      string
	APIKey     string
}

// Enhancer returns the enhancer.* and anthropic.* settings.
func Enhancer() EnhancerSettings {
	return EnhancerSettings{
		Addr:       GetString(KeyEnhancerAddr),
		TaskAPIURL: GetString(KeyEnhancerTaskAPI),
		Model:      GetString(KeyAnthropicModel),
		APIKey:     GetString(KeyAnthropicKey),
	}
}
