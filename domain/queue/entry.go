// Package queue provides domain types for the persistent embedding
// overflow queue: texts waiting to be embedded survive here while the
// embedding service is unreachable.
package queue

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPriority is used when an enqueue does not specify one.
const DefaultPriority = 5

// ErrInvalidTransition is returned when a status change violates the
// pending -> processing -> {completed, failed} lifecycle. Terminal rows
// are immutable.
var ErrInvalidTransition = errors.New("invalid queue status transition")

// Status is the lifecycle state of a queue entry.
type Status string

// Status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Entry is one row of embedding_queue.
type Entry struct {
	id           int64
	projectID    string
	text         string
	priority     int
	status       Status
	embedding    []float64
	errorMessage string
	createdAt    time.Time
	processedAt  time.Time
}

// NewEntry creates a pending Entry. Non-positive priorities fall back to
// DefaultPriority.
func NewEntry(projectID, text string, priority int) Entry {
	if priority <= 0 {
		priority = DefaultPriority
	}
	return Entry{
		projectID: projectID,
		text:      text,
		priority:  priority,
		status:    StatusPending,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructEntry reconstructs an Entry from persistence.
func ReconstructEntry(
	id int64,
	projectID, text string,
	priority int,
	status Status,
	embedding []float64,
	errorMessage string,
	createdAt, processedAt time.Time,
) Entry {
	var emb []float64
	if embedding != nil {
		emb = make([]float64, len(embedding))
		copy(emb, embedding)
	}
	return Entry{
		id:           id,
		projectID:    projectID,
		text:         text,
		priority:     priority,
		status:       status,
		embedding:    emb,
		errorMessage: errorMessage,
		createdAt:    createdAt,
		processedAt:  processedAt,
	}
}

// ID returns the row id, 0 before the first save.
func (e Entry) ID() int64 { return e.id }

// ProjectID returns the owning project id.
func (e Entry) ProjectID() string { return e.projectID }

// Text returns the text waiting to be embedded.
func (e Entry) Text() string { return e.text }

// Priority returns the drain priority; higher drains first.
func (e Entry) Priority() int { return e.priority }

// Status returns the lifecycle state.
func (e Entry) Status() Status { return e.status }

// Embedding returns the computed vector, nil until completed.
func (e Entry) Embedding() []float64 {
	if e.embedding == nil {
		return nil
	}
	emb := make([]float64, len(e.embedding))
	copy(emb, e.embedding)
	return emb
}

// ErrorMessage returns why the entry failed, "" otherwise.
func (e Entry) ErrorMessage() string { return e.errorMessage }

// CreatedAt returns when the entry was enqueued.
func (e Entry) CreatedAt() time.Time { return e.createdAt }

// ProcessedAt returns when the entry reached a terminal state, zero
// before that.
func (e Entry) ProcessedAt() time.Time { return e.processedAt }

// WithID returns a copy carrying the given row id.
func (e Entry) WithID(id int64) Entry {
	e.id = id
	return e
}

// MarkProcessing transitions a pending entry to processing.
func (e Entry) MarkProcessing() (Entry, error) {
	if !e.status.CanTransitionTo(StatusProcessing) {
		return e, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.status, StatusProcessing)
	}
	e.status = StatusProcessing
	return e, nil
}

// Complete transitions a processing entry to completed with its vector.
func (e Entry) Complete(embedding []float64) (Entry, error) {
	if !e.status.CanTransitionTo(StatusCompleted) {
		return e, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.status, StatusCompleted)
	}
	emb := make([]float64, len(embedding))
	copy(emb, embedding)
	e.status = StatusCompleted
	e.embedding = emb
	e.processedAt = time.Now().UTC()
	return e, nil
}

// Fail transitions a processing entry to failed with the error message.
func (e Entry) Fail(message string) (Entry, error) {
	if !e.status.CanTransitionTo(StatusFailed) {
		return e, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.status, StatusFailed)
	}
	e.status = StatusFailed
	e.errorMessage = message
	e.processedAt = time.Now().UTC()
	return e, nil
}
