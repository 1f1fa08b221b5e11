// Package project models project identity: the filesystem path that scopes
// all memory data, the database schema derived from it, and the registry
// row that pins a stable UUID to each path.
package project

import (
	"path/filepath"
	"time"
)

// Project is a registered project with its stable identity.
type Project struct {
	id        string
	path      string
	name      string
	createdAt time.Time
	updatedAt time.Time
}

// NewProject creates a Project value.
func NewProject(id, path, name string, createdAt, updatedAt time.Time) Project {
	if name == "" {
		name = DeriveName(path)
	}
	return Project{
		id:        id,
		path:      path,
		name:      name,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the project UUID.
func (p Project) ID() string { return p.id }

// Path returns the absolute project path.
func (p Project) Path() string { return p.path }

// Name returns the human-readable project name.
func (p Project) Name() string { return p.name }

// CreatedAt returns the registration time.
func (p Project) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last registration touch.
func (p Project) UpdatedAt() time.Time { return p.updatedAt }

// SchemaName returns the database schema this project's tables live in.
func (p Project) SchemaName() string { return SchemaName(p.path) }

// DeriveName produces a display name from a project path: the final path
// element, or "default" for the root fallback.
func DeriveName(path string) string {
	base := filepath.Base(path)
	if base == "/" || base == "." || base == "" {
		return "default"
	}
	return base
}
