package project

// Column identifies how a table scopes its rows to a project.
type Column int

// Column values, in preference order: a project_path column wins over
// project_id; tables with neither are unscoped.
const (
	ColumnNone Column = iota
	ColumnProjectPath
	ColumnProjectID
)

// String returns the column name, or empty for ColumnNone.
func (c Column) String() string {
	switch c {
	case ColumnProjectPath:
		return "project_path"
	case ColumnProjectID:
		return "project_id"
	default:
		return ""
	}
}

// Scoped reports whether rows in the table carry project identity.
func (c Column) Scoped() bool {
	return c != ColumnNone
}
