package memory

import (
	"context"

	"github.com/specmem/specmem/domain/repository"
)

// Store defines the interface for Memory persistence. Implementations are
// scoped to one project schema.
type Store interface {
	Get(ctx context.Context, id string) (Memory, error)
	Find(ctx context.Context, options ...repository.Option) ([]Memory, error)
	Save(ctx context.Context, mem Memory) (Memory, error)
	SaveAll(ctx context.Context, mems []Memory) ([]Memory, error)
	Delete(ctx context.Context, id string) error

	// FindBySession returns up to limit rows sharing metadata.sessionId,
	// ordered by created_at ascending.
	FindBySession(ctx context.Context, sessionID string, limit int) ([]Memory, error)

	// Count returns the total number of memories in the project schema.
	Count(ctx context.Context) (int64, error)

	// CountWithEmbeddings returns the number of memories carrying a vector.
	CountWithEmbeddings(ctx context.Context) (int64, error)
}
