package search

import "time"

// Filters narrows memory search by tags, role, session, or age.
type Filters struct {
	tags          []string
	role          string
	sessionID     string
	createdAfter  time.Time
	createdBefore time.Time
}

// FiltersOption is a functional option for Filters.
type FiltersOption func(*Filters)

// WithTags requires every listed tag to be present on a hit.
func WithTags(tags ...string) FiltersOption {
	return func(f *Filters) {
		f.tags = append(f.tags, tags...)
	}
}

// WithRole restricts hits to one conversational role.
func WithRole(role string) FiltersOption {
	return func(f *Filters) {
		f.role = role
	}
}

// WithSessionID restricts hits to one session.
func WithSessionID(sessionID string) FiltersOption {
	return func(f *Filters) {
		f.sessionID = sessionID
	}
}

// WithCreatedAfter keeps hits created after t.
func WithCreatedAfter(t time.Time) FiltersOption {
	return func(f *Filters) {
		f.createdAfter = t
	}
}

// WithCreatedBefore keeps hits created before t.
func WithCreatedBefore(t time.Time) FiltersOption {
	return func(f *Filters) {
		f.createdBefore = t
	}
}

// NewFilters creates Filters from options.
func NewFilters(opts ...FiltersOption) Filters {
	var f Filters
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Tags returns the required tags.
func (f Filters) Tags() []string {
	result := make([]string, len(f.tags))
	copy(result, f.tags)
	return result
}

// Role returns the role filter, or "".
func (f Filters) Role() string { return f.role }

// SessionID returns the session filter, or "".
func (f Filters) SessionID() string { return f.sessionID }

// CreatedAfter returns the lower creation bound, zero when unset.
func (f Filters) CreatedAfter() time.Time { return f.createdAfter }

// CreatedBefore returns the upper creation bound, zero when unset.
func (f Filters) CreatedBefore() time.Time { return f.createdBefore }

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return len(f.tags) == 0 && f.role == "" && f.sessionID == "" &&
		f.createdAfter.IsZero() && f.createdBefore.IsZero()
}
