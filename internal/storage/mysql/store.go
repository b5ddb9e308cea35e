// Package mysql implements the task store on a MySQL-compatible server.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gomysql "github.com/go-sql-driver/mysql"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

// Config describes how to reach the database.
type Config struct {
	// DSN is a go-sql-driver DSN, e.g. "taskboard@tcp(127.0.0.1:3306)/taskboard".
	DSN string
	// Password, when set, replaces the password in DSN so the secret can be
	// supplied through the environment instead of the connection string.
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Logger *slog.Logger
}

// Store is a storage.Storage backed by the tasks table.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	newBackoff func() backoff.BackOff
}

var _ storage.Storage = (*Store)(nil)
var _ storage.ChangeDetector = (*Store)(nil)

// BuildDSN normalizes cfg.DSN: injects the password and forces the options
// the store relies on (parseTime, UTC, found-rows semantics for UPDATE).
func BuildDSN(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return "", errors.New("mysql: dsn is required")
	}
	dsn, err := gomysql.ParseDSN(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	if cfg.Password != "" {
		dsn.Passwd = cfg.Password
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.ClientFoundRows = true
	return dsn.FormatDSN(), nil
}

// New opens the database, verifies connectivity and bootstraps the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{db: db, logger: logger, newBackoff: newRetryBackoff}

	if err := s.withRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: connect: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.execContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: create schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying pool (used by tests and diagnostics).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	res, err := s.execOnce(ctx,
		"INSERT INTO tasks (title, user_email, is_complete) VALUES (?, ?, FALSE)",
		task.Title, task.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert task: last insert id: %w", err)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	var task *types.Task
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		t, scanErr := scanTask(row)
		task = t
		return scanErr
	}, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, email string) ([]*types.Task, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_email = ? ORDER BY created_at DESC, id DESC",
		email)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	setClauses, args := buildUpdate(update)
	args = append(args, id)
	query := "UPDATE tasks SET " + strings.Join(setClauses, ", ") + " WHERE id = ?" //nolint:gosec // column names come from a fixed set

	res, err := s.execContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return s.GetTask(ctx, id)
}

// buildUpdate renders the SET list for update. An empty EnhancedTitle is
// stored as NULL.
func buildUpdate(update types.TaskUpdate) ([]string, []any) {
	var setClauses []string
	var args []any
	if update.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *update.Title)
	}
	if update.EnhancedTitle != nil {
		setClauses = append(setClauses, "enhanced_title = ?")
		if *update.EnhancedTitle == "" {
			args = append(args, nil)
		} else {
			args = append(args, *update.EnhancedTitle)
		}
	}
	if update.IsComplete != nil {
		setClauses = append(setClauses, "is_complete = ?")
		args = append(args, *update.IsComplete)
	}
	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP(6)")
	return setClauses, args
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.execOnce(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Fingerprint summarizes the table as row count, highest id and latest
// updated_at. Inserts, deletes and updates each move at least one of them.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	var (
		count, maxID int64
		lastUpdate   sql.NullTime
	)
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&count, &maxID, &lastUpdate)
	}, "SELECT COUNT(*), COALESCE(MAX(id), 0), MAX(updated_at) FROM tasks")
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	var ts int64
	if lastUpdate.Valid {
		ts = lastUpdate.Time.UnixNano()
	}
	return fmt.Sprintf("%d:%d:%d", count, maxID, ts), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var (
		t        types.Task
		enhanced sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &enhanced, &t.IsComplete, &t.UserEmail, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if enhanced.Valid {
		t.EnhancedTitle = enhanced.String
	}
	return &t, nil
}
