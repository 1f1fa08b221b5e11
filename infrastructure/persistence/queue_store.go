package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/specmem/specmem/domain/queue"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/internal/database"
)

// QueueStore implements queue.Store using GORM. Each instance is bound to
// one project schema's embedding_queue table.
type QueueStore struct {
	database.Repository[queue.Entry, QueueEntryModel]
	db database.Database
}

// NewQueueStore creates a QueueStore bound to the given project schema.
func NewQueueStore(db database.Database, schema string) QueueStore {
	return QueueStore{
		Repository: database.NewRepositoryForTable[queue.Entry, QueueEntryModel](
			db, QueueEntryMapper{}, "queue entry", db.QualifiedTable(schema, "embedding_queue"),
		),
		db: db,
	}
}

// Enqueue inserts a pending entry and returns it with its row id.
func (s QueueStore) Enqueue(ctx context.Context, entry queue.Entry) (queue.Entry, error) {
	saved, err := s.Create(ctx, entry)
	if err != nil {
		return queue.Entry{}, fmt.Errorf("enqueue: %w", err)
	}
	return saved, nil
}

// Get returns the entry with the given row id.
func (s QueueStore) Get(ctx context.Context, id int64) (queue.Entry, error) {
	return s.FindOne(ctx, repository.WithID(id))
}

// Claim atomically marks up to batchSize pending rows as processing and
// returns them, ordered by priority descending then created_at ascending.
// The whole claim is one UPDATE statement; on PostgreSQL the selecting
// subquery locks rows with FOR UPDATE SKIP LOCKED so parallel drainers
// never contend on the same row. SQLite serializes writers, which gives
// the same guarantee for free.
func (s QueueStore) Claim(ctx context.Context, batchSize int) ([]queue.Entry, error) {
	if batchSize <= 0 {
		return []queue.Entry{}, nil
	}

	locking := ""
	if s.db.IsPostgres() {
		locking = "\n    FOR UPDATE SKIP LOCKED"
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = ?
WHERE id IN (
    SELECT id FROM %s
    WHERE status = ?
    ORDER BY priority DESC, created_at ASC
    LIMIT ?%s
)
RETURNING id, project_id, text, priority, status, embedding, error_message, created_at, processed_at`,
		s.Table(), s.Table(), locking)

	var models []QueueEntryModel
	result := s.DB(ctx).Raw(query,
		string(queue.StatusProcessing),
		string(queue.StatusPending),
		batchSize,
	).Scan(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("claim queue entries: %w", result.Error)
	}

	entries := make([]queue.Entry, len(models))
	for i, m := range models {
		entries[i] = s.Mapper().ToDomain(m)
	}

	// RETURNING order is unspecified, so restore drain order.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority() != b.Priority() {
			return a.Priority() > b.Priority()
		}
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return a.ID() < b.ID()
	})
	return entries, nil
}

// Complete marks a processing row completed with its vector. The status
// guard lives in the WHERE clause, so terminal rows are never rewritten.
func (s QueueStore) Complete(ctx context.Context, id int64, embedding []float64) error {
	vec := database.NewVector(embedding)
	result := s.DB(ctx).
		Where("id = ? AND status = ?", id, string(queue.StatusProcessing)).
		Updates(map[string]any{
			"status":       string(queue.StatusCompleted),
			"embedding":    vec,
			"processed_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("complete queue entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.transitionError(ctx, id, queue.StatusCompleted)
	}
	return nil
}

// Fail marks a processing row failed with the error message.
func (s QueueStore) Fail(ctx context.Context, id int64, message string) error {
	result := s.DB(ctx).
		Where("id = ? AND status = ?", id, string(queue.StatusProcessing)).
		Updates(map[string]any{
			"status":        string(queue.StatusFailed),
			"error_message": message,
			"processed_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("fail queue entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.transitionError(ctx, id, queue.StatusFailed)
	}
	return nil
}

// transitionError explains why a guarded status UPDATE matched nothing.
func (s QueueStore) transitionError(ctx context.Context, id int64, target queue.Status) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, entry.Status(), target)
}

// CountByStatus tallies rows per lifecycle state.
func (s QueueStore) CountByStatus(ctx context.Context) (map[queue.Status]int64, error) {
	var rows []struct {
		Status string `gorm:"column:status"`
		Total  int64  `gorm:"column:total"`
	}

	query := fmt.Sprintf(`SELECT status, COUNT(*) AS total FROM %s GROUP BY status`, s.Table())
	if result := s.DB(ctx).Raw(query).Scan(&rows); result.Error != nil {
		return nil, fmt.Errorf("count queue entries: %w", result.Error)
	}

	counts := make(map[queue.Status]int64, len(rows))
	for _, row := range rows {
		counts[queue.Status(row.Status)] = row.Total
	}
	return counts, nil
}

// Cleanup deletes terminal rows older than the window and returns how many
// went.
func (s QueueStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := s.DB(ctx).
		Where("status IN ? AND created_at < ?",
			[]string{string(queue.StatusCompleted), string(queue.StatusFailed)}, cutoff).
		Delete(&QueueEntryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup queue: %w", result.Error)
	}
	return result.RowsAffected, nil
}
