package code

import (
	"context"
	"errors"
)

// ErrTableMissing is returned by stores when a backing table has not been
// created in the project schema. Callers treating code context as optional
// check for it and degrade silently.
var ErrTableMissing = errors.New("code table missing")

// DefinitionStore defines the interface for Definition persistence.
type DefinitionStore interface {
	// GetByFileAndName returns the definition with the given name in the
	// given file.
	GetByFileAndName(ctx context.Context, filePath, name string) (Definition, error)

	Save(ctx context.Context, def Definition) (Definition, error)
	SaveAll(ctx context.Context, defs []Definition) ([]Definition, error)
}

// FileStore defines the interface for File persistence.
type FileStore interface {
	GetByPath(ctx context.Context, filePath string) (File, error)
	Save(ctx context.Context, file File) (File, error)
}

// PointerStore defines the interface for Pointer persistence.
type PointerStore interface {
	// FindByMemory returns up to limit pointers for the given memory,
	// joined against codebase_files so stale pointers to deleted files are
	// dropped. Returns ErrTableMissing when the tables do not exist.
	FindByMemory(ctx context.Context, memoryID string, limit int) ([]Pointer, error)

	Save(ctx context.Context, ptr Pointer) (Pointer, error)
}
