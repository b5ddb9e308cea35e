// Package factory opens a storage backend by name.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/memory"
	"github.com/quillworks/taskboard/internal/storage/mysql"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

// BackendFactory creates a storage backend.
type BackendFactory func(ctx context.Context, opts Options) (storage.Storage, error)

// backendRegistry holds registered backend factories
var backendRegistry = map[string]BackendFactory{
	BackendMemory: func(ctx context.Context, opts Options) (storage.Storage, error) {
		return memory.New(), nil
	},
	BackendMySQL: func(ctx context.Context, opts Options) (storage.Storage, error) {
		return mysql.New(ctx, mysql.Config{
			DSN:      opts.DSN,
			Password: opts.Password,
			Logger:   opts.Logger,
		})
	},
}

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// Options configures how the storage backend is opened
type Options struct {
	DSN      string
	Password string
	Logger   *slog.Logger
}

// New creates a storage backend. An empty backend name selects memory.
func New(ctx context.Context, backend string, opts Options) (storage.Storage, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendMemory
	}
	factory, ok := backendRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, strings.Join(Backends(), ", "))
	}
	return factory(ctx, opts)
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
