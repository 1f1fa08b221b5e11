package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/specmem/specmem/domain/queue"
	"github.com/specmem/specmem/internal/config"
)

// EmbedFunc produces an embedding for one text. The queue drain calls it
// once per claimed row.
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)

// EmbedResult is the outcome delivered to a waiting ticket.
type EmbedResult struct {
	Embedding []float64
	Err       error
}

// Ticket tracks one queued embedding request. Wait consumes the single
// result; a ticket is one-shot.
type Ticket struct {
	id int64
	ch chan EmbedResult
}

// ID returns the queue row id backing this ticket.
func (t Ticket) ID() int64 { return t.id }

// Wait blocks until the ticket resolves or ctx ends. An abandoned ticket
// does not block the drain; its result is simply dropped and the callback
// expires by TTL.
func (t Ticket) Wait(ctx context.Context) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-t.ch:
		return result.Embedding, result.Err
	}
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	processed int
	failed    int
}

// Processed returns how many rows were embedded and completed.
func (r DrainResult) Processed() int { return r.processed }

// Failed returns how many rows were marked failed.
func (r DrainResult) Failed() int { return r.failed }

// QueueStats reports queue depth per lifecycle state plus the number of
// in-process waiters.
type QueueStats struct {
	byStatus map[queue.Status]int64
	waiting  int
}

// ByStatus returns the row count in one lifecycle state.
func (s QueueStats) ByStatus(status queue.Status) int64 {
	return s.byStatus[status]
}

// Waiting returns how many tickets are currently waiting in-process.
func (s QueueStats) Waiting() int { return s.waiting }

// EmbeddingQueue absorbs embedding requests while the embedding service
// is cold and fans results back out when it warms up. Texts persist in
// the embedding_queue table; waiters are in-memory tickets bounded by a
// cap and a TTL, so lost results never pin memory.
type EmbeddingQueue struct {
	store     queue.Store
	projectID string
	logger    *slog.Logger

	maxSize    int
	maxAge     time.Duration
	sweepEvery time.Duration
	claimBatch int
	retention  time.Duration

	mu         sync.Mutex
	pending    map[int64]chan EmbedResult
	enqueuedAt map[int64]time.Time
	draining   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	runMu  sync.Mutex
}

// NewEmbeddingQueue creates an EmbeddingQueue over one project's queue
// store. projectID scopes the persisted rows.
func NewEmbeddingQueue(store queue.Store, projectID string, cfg config.QueueConfig, logger *slog.Logger) *EmbeddingQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingQueue{
		store:      store,
		projectID:  projectID,
		logger:     logger,
		maxSize:    cfg.MaxSize(),
		maxAge:     cfg.MaxAge(),
		sweepEvery: cfg.CleanupInterval(),
		claimBatch: cfg.ClaimBatch(),
		retention:  cfg.Retention(),
		pending:    make(map[int64]chan EmbedResult),
		enqueuedAt: make(map[int64]time.Time),
	}
}

// Start begins the background sweep that expires stale tickets.
func (q *EmbeddingQueue) Start(ctx context.Context) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Go(func() {
		q.run(ctx)
	})

	q.logger.Info("embedding queue started",
		slog.Int("max_size", q.maxSize),
		slog.Duration("max_age", q.maxAge))
}

// Stop cancels the sweeper and waits for it to finish. Unresolved tickets
// are rejected so no waiter hangs across shutdown.
func (q *EmbeddingQueue) Stop() {
	q.runMu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	for _, id := range q.pendingIDs() {
		q.reject(id, ErrClientClosed)
	}
	q.logger.Info("embedding queue stopped")
}

func (q *EmbeddingQueue) run(ctx context.Context) {
	ticker := time.NewTicker(q.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.expireTickets(time.Now())
		}
	}
}

// QueueForEmbedding persists text as a pending row and returns a ticket
// that resolves when a drain embeds it. Rejects immediately with
// ErrQueueFull when the waiter cap is reached.
func (q *EmbeddingQueue) QueueForEmbedding(ctx context.Context, text string, priority int) (Ticket, error) {
	if priority <= 0 {
		priority = queue.DefaultPriority
	}

	q.mu.Lock()
	if len(q.pending) >= q.maxSize {
		waiting := len(q.pending)
		q.mu.Unlock()
		return Ticket{}, fmt.Errorf("%w: %d waiters", ErrQueueFull, waiting)
	}
	q.mu.Unlock()

	entry, err := q.store.Enqueue(ctx, queue.NewEntry(q.projectID, text, priority))
	if err != nil {
		return Ticket{}, fmt.Errorf("enqueue embedding request: %w", err)
	}

	ch := make(chan EmbedResult, 1)
	q.mu.Lock()
	q.pending[entry.ID()] = ch
	q.enqueuedAt[entry.ID()] = time.Now()
	q.mu.Unlock()

	q.logger.Debug("embedding request queued",
		slog.Int64("queue_id", entry.ID()),
		slog.Int("priority", priority))

	return Ticket{id: entry.ID(), ch: ch}, nil
}

// Drain claims pending rows in priority order and embeds them with embed,
// resolving or rejecting the matching tickets. At most one drain runs per
// process; a second concurrent call returns ErrDrainActive. Rows queued
// by other processes drain too; their results simply have no local
// waiter.
func (q *EmbeddingQueue) Drain(ctx context.Context, embed EmbedFunc) (DrainResult, error) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return DrainResult{}, ErrDrainActive
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	var result DrainResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := q.store.Claim(ctx, q.claimBatch)
		if err != nil {
			return result, fmt.Errorf("claim queue batch: %w", err)
		}
		if len(batch) == 0 {
			if result.processed > 0 || result.failed > 0 {
				q.logger.Info("embedding queue drained",
					slog.Int("processed", result.processed),
					slog.Int("failed", result.failed))
			}
			return result, nil
		}

		for _, entry := range batch {
			q.drainOne(ctx, entry, embed, &result)
		}
	}
}

func (q *EmbeddingQueue) drainOne(ctx context.Context, entry queue.Entry, embed EmbedFunc, result *DrainResult) {
	embedding, err := embed(ctx, entry.Text())
	if err != nil {
		if failErr := q.store.Fail(ctx, entry.ID(), err.Error()); failErr != nil {
			q.logger.Warn("failed to mark queue row failed",
				slog.Int64("queue_id", entry.ID()),
				slog.String("error", failErr.Error()))
		}
		q.reject(entry.ID(), err)
		result.failed++
		return
	}

	// The embedding is real even if persisting it fails; the waiter still
	// gets its vector and the row is retried by a later drain.
	if err := q.store.Complete(ctx, entry.ID(), embedding); err != nil {
		q.logger.Warn("failed to persist completed embedding",
			slog.Int64("queue_id", entry.ID()),
			slog.String("error", err.Error()))
	}
	q.resolve(entry.ID(), embedding)
	result.processed++
}

// Cleanup deletes terminal rows older than the window. A non-positive
// window uses the configured retention.
func (q *EmbeddingQueue) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = q.retention
	}
	removed, err := q.store.Cleanup(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup embedding queue: %w", err)
	}
	if removed > 0 {
		q.logger.Info("embedding queue cleaned up",
			slog.Int64("removed", removed),
			slog.Duration("older_than", olderThan))
	}
	return removed, nil
}

// Stats reports row counts per status and the in-process waiter count.
func (q *EmbeddingQueue) Stats(ctx context.Context) (QueueStats, error) {
	byStatus, err := q.store.CountByStatus(ctx)
	if err != nil {
		return QueueStats{}, fmt.Errorf("count queue rows: %w", err)
	}
	q.mu.Lock()
	waiting := len(q.pending)
	q.mu.Unlock()
	return QueueStats{byStatus: byStatus, waiting: waiting}, nil
}

// expireTickets rejects every waiter older than maxAge. The persisted row
// is untouched; only the local callback gives up.
func (q *EmbeddingQueue) expireTickets(now time.Time) {
	var expired []int64
	q.mu.Lock()
	for id, at := range q.enqueuedAt {
		if now.Sub(at) > q.maxAge {
			expired = append(expired, id)
		}
	}
	q.mu.Unlock()

	for _, id := range expired {
		q.reject(id, fmt.Errorf("%w after %s", ErrTicketExpired, q.maxAge))
	}
	if len(expired) > 0 {
		q.logger.Warn("expired stale embedding tickets", slog.Int("count", len(expired)))
	}
}

func (q *EmbeddingQueue) resolve(id int64, embedding []float64) {
	if ch, ok := q.take(id); ok {
		ch <- EmbedResult{Embedding: embedding}
	}
}

func (q *EmbeddingQueue) reject(id int64, err error) {
	if ch, ok := q.take(id); ok {
		ch <- EmbedResult{Err: err}
	}
}

// take removes a ticket from both maps, guaranteeing at most one
// resolution per ticket: whoever takes it delivers.
func (q *EmbeddingQueue) take(id int64) (chan EmbedResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.pending[id]
	delete(q.pending, id)
	delete(q.enqueuedAt, id)
	return ch, ok
}

func (q *EmbeddingQueue) pendingIDs() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]int64, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}
