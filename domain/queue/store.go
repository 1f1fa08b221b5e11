package queue

import (
	"context"
	"time"
)

// Store defines the interface for embedding_queue persistence.
// Implementations are scoped to one project schema.
type Store interface {
	// Enqueue inserts a pending entry and returns it with its row id.
	Enqueue(ctx context.Context, entry Entry) (Entry, error)

	Get(ctx context.Context, id int64) (Entry, error)

	// Claim atomically selects up to batchSize pending rows ordered by
	// priority descending then created_at ascending, marks them
	// processing, and returns them. On backends that support it, rows
	// are locked so concurrent drainers never claim the same row.
	Claim(ctx context.Context, batchSize int) ([]Entry, error)

	// Complete marks a processing row completed with its vector.
	Complete(ctx context.Context, id int64, embedding []float64) error

	// Fail marks a processing row failed with the error message.
	Fail(ctx context.Context, id int64, message string) error

	// CountByStatus tallies rows per lifecycle state.
	CountByStatus(ctx context.Context) (map[Status]int64, error)

	// Cleanup deletes terminal rows older than the window and returns
	// how many went.
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}
