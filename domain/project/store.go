package project

import "context"

// Store defines the interface for the projects registry.
type Store interface {
	// Register upserts a project by path and returns its row. Concurrent
	// registrants of the same path converge to the same UUID.
	Register(ctx context.Context, path string) (Project, error)

	// FindByPath returns the project registered under the given path.
	FindByPath(ctx context.Context, path string) (Project, error)

	// All returns every registered project.
	All(ctx context.Context) ([]Project, error)
}
