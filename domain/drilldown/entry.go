// Package drilldown provides compact integer handles for interactive
// browsing: search hits, code regions, and context rows register here and
// are later resolved by handle or by memory-id prefix.
package drilldown

import "time"

// EntryType classifies what a handle points at.
type EntryType string

// Entry types.
const (
	TypeMemory  EntryType = "memory"
	TypeCode    EntryType = "code"
	TypeContext EntryType = "context"
)

// Entry is one registered handle. memoryID is the registration key: a
// memory UUID, a "filePath:defName" code reference, or a context row id.
type Entry struct {
	id           int
	memoryID     string
	entryType    EntryType
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int
	parentID     int
	searchQuery  string
	zoomLevel    string
}

// ID returns the integer handle.
func (e Entry) ID() int { return e.id }

// MemoryID returns the registration key.
func (e Entry) MemoryID() string { return e.memoryID }

// Type returns the entry type.
func (e Entry) Type() EntryType { return e.entryType }

// CreatedAt returns when the handle was minted.
func (e Entry) CreatedAt() time.Time { return e.createdAt }

// LastAccessed returns the last touch time, zero until first resolve.
func (e Entry) LastAccessed() time.Time { return e.lastAccessed }

// AccessCount returns how often the entry was registered or resolved.
// Always at least 1.
func (e Entry) AccessCount() int { return e.accessCount }

// ParentID returns the handle this entry was discovered from, 0 for none.
func (e Entry) ParentID() int { return e.parentID }

// SearchQuery returns the query that produced the entry, if any.
func (e Entry) SearchQuery() string { return e.searchQuery }

// ZoomLevel returns the zoom level active at registration, if any.
func (e Entry) ZoomLevel() string { return e.zoomLevel }

// effectiveLastAccess is the timestamp TTL eviction ages against.
func (e Entry) effectiveLastAccess() time.Time {
	if e.lastAccessed.IsZero() {
		return e.createdAt
	}
	return e.lastAccessed
}
