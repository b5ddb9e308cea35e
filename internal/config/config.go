// Package config loads taskboard settings from flags, environment variables
// and an optional taskboard.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize builds a fresh viper instance: defaults, environment bindings
// and the first taskboard.yaml found in the working directory or
// $XDG_CONFIG_HOME/taskboard. A missing file is not an error.
func Initialize() error {
	return initialize("")
}

// InitializeFromFile is Initialize with an explicit config file.
func InitializeFromFile(path string) error {
	return initialize(path)
}

func initialize(path string) error {
	v = viper.New()

	for _, k := range Keys {
		if k.Default != nil {
			v.SetDefault(k.Key, k.Default)
		}
		if len(k.EnvVars) > 0 {
			if err := v.BindEnv(append([]string{k.Key}, k.EnvVars...)...); err != nil {
				return fmt.Errorf("config: bind env for %s: %w", k.Key, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := configHome(); dir != "" {
			v.AddConfigPath(filepath.Join(dir, "taskboard"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("config: read %s: %w", describe(path), err)
		}
	}
	return nil
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

func describe(path string) string {
	if path == "" {
		return "taskboard.yaml"
	}
	return path
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlag makes a command-line flag override key when the flag is set.
func BindFlag(key string, flag *pflag.Flag) error {
	if v == nil || flag == nil {
		return nil
	}
	return v.BindPFlag(key, flag)
}

// Set overrides a value for the rest of the process (highest precedence).
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Validate checks every key that has a validator.
func Validate() error {
	var errs []error
	for _, k := range Keys {
		if k.Validate == nil {
			continue
		}
		if err := k.Validate(GetString(k.Key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.Key, err))
		}
	}
	return errors.Join(errs...)
}

// Redacted is shown in place of secret values.
const Redacted = "********"

// Effective returns every known key with its resolved value as a nested map
// suitable for YAML output. Secret values are masked.
func Effective() map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(Keys))
	for _, k := range Keys {
		keys = append(keys, k.Key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		def := LookupKey(key)
		var value any = GetString(key)
		if def.Secret && GetString(key) != "" {
			value = Redacted
		}
		section, name, _ := strings.Cut(key, ".")
		m, ok := out[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			out[section] = m
		}
		m[name] = value
	}
	return out
}
