package persistence

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/specmem/specmem/internal/database"
)

// JSONMap is a custom type for JSON object columns. PostgreSQL stores it
// as JSONB, SQLite as TEXT; both round-trip through the JSON text form.
type JSONMap map[string]any

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer. The JSON is sent as text so the server
// can coerce it to its native JSON type.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// ProjectModel represents a row of the global projects registry.
type ProjectModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Path      string    `gorm:"column:path;uniqueIndex;size:1024"`
	Name      string    `gorm:"column:name;size:255"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (ProjectModel) TableName() string {
	return "projects"
}

// MemoryModel represents a memory row in a project schema.
type MemoryModel struct {
	ID        string           `gorm:"column:id;primaryKey;size:36"`
	Content   string           `gorm:"column:content;type:text"`
	Tags      pq.StringArray   `gorm:"column:tags;type:text[]"`
	Metadata  JSONMap          `gorm:"column:metadata;type:jsonb"`
	Embedding *database.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt time.Time        `gorm:"column:created_at"`
}

// TableName returns the table name.
func (MemoryModel) TableName() string {
	return "memories"
}

// CodeDefinitionModel represents an indexed code definition.
type CodeDefinitionModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	FilePath   string `gorm:"column:file_path;uniqueIndex:idx_code_definitions_file_name;size:1024"`
	Name       string `gorm:"column:name;uniqueIndex:idx_code_definitions_file_name;size:512"`
	Type       string `gorm:"column:definition_type;size:64"`
	Language   string `gorm:"column:language;size:64"`
	StartLine  int    `gorm:"column:start_line;default:0"`
	EndLine    int    `gorm:"column:end_line;default:0"`
	Content    string `gorm:"column:content;type:text"`
	Signature  string `gorm:"column:signature;type:text"`
	Docstring  string `gorm:"column:docstring;type:text"`
	IsExported bool   `gorm:"column:is_exported;default:false"`
}

// TableName returns the table name.
func (CodeDefinitionModel) TableName() string {
	return "code_definitions"
}

// CodebaseFileModel represents an indexed source file.
type CodebaseFileModel struct {
	FilePath   string `gorm:"column:file_path;primaryKey;size:1024"`
	FileName   string `gorm:"column:file_name;index;size:512"`
	LanguageID string `gorm:"column:language_id;size:64"`
	Content    string `gorm:"column:content;type:text"`
	LineCount  int    `gorm:"column:line_count;default:0"`
}

// TableName returns the table name.
func (CodebaseFileModel) TableName() string {
	return "codebase_files"
}

// CodebasePointerModel links a memory to a location in an indexed file.
type CodebasePointerModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MemoryID     string    `gorm:"column:memory_id;index;size:36"`
	FilePath     string    `gorm:"column:file_path;size:1024"`
	LineStart    int       `gorm:"column:line_start;default:0"`
	LineEnd      int       `gorm:"column:line_end;default:0"`
	FunctionName string    `gorm:"column:function_name;size:512"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (CodebasePointerModel) TableName() string {
	return "codebase_pointers"
}

// QueueEntryModel represents a row of the embedding overflow queue.
type QueueEntryModel struct {
	ID           int64            `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID    string           `gorm:"column:project_id;index;size:36"`
	Text         string           `gorm:"column:text;type:text"`
	Priority     int              `gorm:"column:priority;default:5"`
	Status       string           `gorm:"column:status;index;size:32"`
	Embedding    *database.Vector `gorm:"column:embedding;type:vector"`
	ErrorMessage sql.NullString   `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time        `gorm:"column:created_at"`
	ProcessedAt  sql.NullTime     `gorm:"column:processed_at"`
}

// TableName returns the table name.
func (QueueEntryModel) TableName() string {
	return "embedding_queue"
}
