// Package types defines core data structures for the taskboard task list.
package types

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyUpdate is returned when a TaskUpdate carries no fields to change.
var ErrEmptyUpdate = errors.New("update has no fields")

// Task is a single entry of a user's task list.
type Task struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	EnhancedTitle string    `json:"enhanced_title,omitempty"` // Set by the automation webhook; cleared on edit
	IsComplete    bool      `json:"is_complete"`
	UserEmail     string    `json:"user_email"` // Partition key, not an identity
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayTitle returns the enhanced title when one is set, else the original title.
func (t *Task) DisplayTitle() string {
	if t.EnhancedTitle != "" {
		return t.EnhancedTitle
	}
	return t.Title
}

// IsEnhanced reports whether the displayed title differs from what the user typed.
func (t *Task) IsEnhanced() bool {
	return t.EnhancedTitle != ""
}

// Clone returns a copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// TaskUpdate is a partial update. Nil fields are left untouched.
// An EnhancedTitle pointing at "" clears the stored value.
type TaskUpdate struct {
	Title         *string `json:"title,omitempty"`
	EnhancedTitle *string `json:"enhanced_title,omitempty"`
	IsComplete    *bool   `json:"is_complete,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.EnhancedTitle == nil && u.IsComplete == nil
}

// Validate rejects empty updates.
func (u TaskUpdate) Validate() error {
	if u.IsEmpty() {
		return ErrEmptyUpdate
	}
	return nil
}

// Apply mutates t in place with the non-nil fields of u.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.EnhancedTitle != nil {
		t.EnhancedTitle = *u.EnhancedTitle
	}
	if u.IsComplete != nil {
		t.IsComplete = *u.IsComplete
	}
}

// Fields lists the names of the columns u touches, in a stable order.
func (u TaskUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.EnhancedTitle != nil {
		fields = append(fields, "enhanced_title")
	}
	if u.IsComplete != nil {
		fields = append(fields, "is_complete")
	}
	return fields
}

// EditTitle builds the update for a user edit: the title is replaced and any
// enhanced title is cleared.
func EditTitle(title string) TaskUpdate {
	cleared := ""
	return TaskUpdate{Title: &title, EnhancedTitle: &cleared}
}

// SetComplete builds the update that sets the completion flag.
func SetComplete(done bool) TaskUpdate {
	return TaskUpdate{IsComplete: &done}
}

// SetEnhancedTitle builds the write-back update used by the automation webhook.
func SetEnhancedTitle(title string) TaskUpdate {
	title = strings.TrimSpace(title)
	return TaskUpdate{EnhancedTitle: &title}
}

// NewTask describes a row to insert. The store assigns ID and timestamps.
type NewTask struct {
	Title     string `json:"title"`
	UserEmail string `json:"user_email"`
}
