package enhancer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quillworks/taskboard/internal/types"
)

// TaskWriter stores the rewritten title. storage.Storage satisfies it, and so
// does APIWriter for a webhook that runs apart from the database.
type TaskWriter interface {
	UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error)
}

// APIWriter writes through a taskboard server's PATCH /api/tasks/{id}.
type APIWriter struct {
	baseURL string
	client  *http.Client
}

// NewAPIWriter returns a writer for the server at baseURL
// (e.g. http://127.0.0.1:8080).
func NewAPIWriter(baseURL string, client *http.Client) *APIWriter {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIWriter{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), client: client}
}

// UpdateTask implements TaskWriter.
func (w *APIWriter) UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/tasks/%d", w.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("patch task %d: %w", id, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("patch task %d: status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var task types.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode task %d: %w", id, err)
	}
	return &task, nil
}
