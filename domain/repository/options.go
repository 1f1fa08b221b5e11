package repository

import "time"

// WithSessionID filters by the "session_id" column.
func WithSessionID(id string) Option {
	return WithCondition("session_id", id)
}

// WithRole filters by the "role" column.
func WithRole(role string) Option {
	return WithCondition("role", role)
}

// WithProjectID filters by the "project_id" column.
func WithProjectID(id int64) Option {
	return WithCondition("project_id", id)
}

// WithProjectPath filters by the "project_path" column.
func WithProjectPath(path string) Option {
	return WithCondition("project_path", path)
}

// WithStatus filters by the "status" column.
func WithStatus(status string) Option {
	return WithCondition("status", status)
}

// WithStatusIn filters by the "status" column using IN.
func WithStatusIn(statuses []string) Option {
	return WithConditionIn("status", statuses)
}

// WithFilePath filters by the "file_path" column.
func WithFilePath(path string) Option {
	return WithCondition("file_path", path)
}

// WithMemoryID filters by the "memory_id" column.
func WithMemoryID(id int64) Option {
	return WithCondition("memory_id", id)
}

// WithCreatedBefore filters rows created strictly before the given time.
func WithCreatedBefore(t time.Time) Option {
	return WithWhere("created_at < ?", t)
}

// WithCreatedAfter filters rows created strictly after the given time.
func WithCreatedAfter(t time.Time) Option {
	return WithWhere("created_at > ?", t)
}

// WithUpdatedBefore filters rows updated strictly before the given time.
func WithUpdatedBefore(t time.Time) Option {
	return WithWhere("updated_at < ?", t)
}

// WithEmbedding filters rows that have a non-empty embedding.
func WithEmbedding() Option {
	return WithWhere("embedding IS NOT NULL AND embedding != ''")
}

// WithoutEmbedding filters rows whose embedding is missing or empty.
func WithoutEmbedding() Option {
	return WithWhere("embedding IS NULL OR embedding = ''")
}
