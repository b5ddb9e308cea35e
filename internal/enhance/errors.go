package enhance

import (
	"errors"
	"fmt"
)

// ConfigurationError reports that the relay cannot run because a required
// setting is missing. No network call is made.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return "webhook URL not configured"
	}
	return fmt.Sprintf("%s not configured", e.Setting)
}

// UpstreamError reports a non-2xx response from the automation webhook.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
}

// EnhancementError wraps a transport or encoding failure while calling the
// webhook (or, for Client, the relay).
type EnhancementError struct {
	Op  string
	Err error
}

func (e *EnhancementError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("failed to enhance task: %v", e.Err)
	}
	return fmt.Sprintf("failed to enhance task: %s: %v", e.Op, e.Err)
}

func (e *EnhancementError) Unwrap() error {
	return e.Err
}

// ErrInvalidRequest is returned when a relay request body cannot be decoded
// or lacks a task id.
var ErrInvalidRequest = errors.New("invalid request body")

// publicMessage returns the short message sent to relay callers.
func publicMessage(err error) string {
	var cfgErr *ConfigurationError
	var upErr *UpstreamError
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	case errors.As(err, &upErr):
		return upErr.Error()
	case errors.Is(err, ErrInvalidRequest):
		return ErrInvalidRequest.Error()
	default:
		return "failed to enhance task"
	}
}
