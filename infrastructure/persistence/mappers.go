package persistence

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/domain/queue"
	"github.com/specmem/specmem/internal/database"
)

// ProjectMapper maps between domain Project and persistence ProjectModel.
type ProjectMapper struct{}

// ToDomain converts a ProjectModel to a domain Project.
func (m ProjectMapper) ToDomain(e ProjectModel) project.Project {
	return project.NewProject(e.ID, e.Path, e.Name, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a domain Project to a ProjectModel.
func (m ProjectMapper) ToModel(p project.Project) ProjectModel {
	return ProjectModel{
		ID:        p.ID(),
		Path:      p.Path(),
		Name:      p.Name(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

// MemoryMapper maps between domain Memory and persistence MemoryModel.
type MemoryMapper struct{}

// ToDomain converts a MemoryModel to a domain Memory.
func (m MemoryMapper) ToDomain(e MemoryModel) memory.Memory {
	var embedding []float64
	if e.Embedding != nil {
		embedding = e.Embedding.Floats()
	}
	return memory.ReconstructMemory(
		e.ID,
		e.Content,
		[]string(e.Tags),
		map[string]any(e.Metadata),
		embedding,
		e.CreatedAt,
	)
}

// ToModel converts a domain Memory to a MemoryModel.
func (m MemoryMapper) ToModel(mem memory.Memory) MemoryModel {
	var embedding *database.Vector
	if mem.HasEmbedding() {
		vec := database.NewVector(mem.Embedding())
		embedding = &vec
	}
	return MemoryModel{
		ID:        mem.ID(),
		Content:   mem.Content(),
		Tags:      pq.StringArray(mem.Tags()),
		Metadata:  JSONMap(mem.Metadata()),
		Embedding: embedding,
		CreatedAt: mem.CreatedAt(),
	}
}

// CodeDefinitionMapper maps between code.Definition and CodeDefinitionModel.
type CodeDefinitionMapper struct{}

// ToDomain converts a CodeDefinitionModel to a code.Definition.
func (m CodeDefinitionMapper) ToDomain(e CodeDefinitionModel) code.Definition {
	return code.NewDefinition(
		e.FilePath,
		e.Name,
		e.Type,
		e.Language,
		e.StartLine,
		e.EndLine,
		e.Content,
		e.Signature,
		e.Docstring,
		e.IsExported,
	)
}

// ToModel converts a code.Definition to a CodeDefinitionModel.
func (m CodeDefinitionMapper) ToModel(d code.Definition) CodeDefinitionModel {
	return CodeDefinitionModel{
		FilePath:   d.FilePath(),
		Name:       d.Name(),
		Type:       d.Type(),
		Language:   d.Language(),
		StartLine:  d.StartLine(),
		EndLine:    d.EndLine(),
		Content:    d.Content(),
		Signature:  d.Signature(),
		Docstring:  d.Docstring(),
		IsExported: d.Exported(),
	}
}

// CodebaseFileMapper maps between code.File and CodebaseFileModel.
type CodebaseFileMapper struct{}

// ToDomain converts a CodebaseFileModel to a code.File.
func (m CodebaseFileMapper) ToDomain(e CodebaseFileModel) code.File {
	return code.NewFile(e.FilePath, e.FileName, e.LanguageID, e.Content, e.LineCount)
}

// ToModel converts a code.File to a CodebaseFileModel.
func (m CodebaseFileMapper) ToModel(f code.File) CodebaseFileModel {
	return CodebaseFileModel{
		FilePath:   f.Path(),
		FileName:   f.Name(),
		LanguageID: f.LanguageID(),
		Content:    f.Content(),
		LineCount:  f.LineCount(),
	}
}

// CodebasePointerMapper maps between code.Pointer and CodebasePointerModel.
type CodebasePointerMapper struct{}

// ToDomain converts a CodebasePointerModel to a code.Pointer.
func (m CodebasePointerMapper) ToDomain(e CodebasePointerModel) code.Pointer {
	return code.NewPointer(
		e.MemoryID,
		e.FilePath,
		e.LineStart,
		e.LineEnd,
		e.FunctionName,
		e.CreatedAt,
	)
}

// ToModel converts a code.Pointer to a CodebasePointerModel.
func (m CodebasePointerMapper) ToModel(p code.Pointer) CodebasePointerModel {
	return CodebasePointerModel{
		MemoryID:     p.MemoryID(),
		FilePath:     p.FilePath(),
		LineStart:    p.LineStart(),
		LineEnd:      p.LineEnd(),
		FunctionName: p.FunctionName(),
		CreatedAt:    p.CreatedAt(),
	}
}

// QueueEntryMapper maps between queue.Entry and QueueEntryModel.
type QueueEntryMapper struct{}

// ToDomain converts a QueueEntryModel to a queue.Entry.
func (m QueueEntryMapper) ToDomain(e QueueEntryModel) queue.Entry {
	var embedding []float64
	if e.Embedding != nil {
		embedding = e.Embedding.Floats()
	}

	var processedAt time.Time
	if e.ProcessedAt.Valid {
		processedAt = e.ProcessedAt.Time
	}

	return queue.ReconstructEntry(
		e.ID,
		e.ProjectID,
		e.Text,
		e.Priority,
		queue.Status(e.Status),
		embedding,
		e.ErrorMessage.String,
		e.CreatedAt,
		processedAt,
	)
}

// ToModel converts a queue.Entry to a QueueEntryModel.
func (m QueueEntryMapper) ToModel(entry queue.Entry) QueueEntryModel {
	var embedding *database.Vector
	if len(entry.Embedding()) > 0 {
		vec := database.NewVector(entry.Embedding())
		embedding = &vec
	}

	var errorMessage sql.NullString
	if entry.ErrorMessage() != "" {
		errorMessage = sql.NullString{String: entry.ErrorMessage(), Valid: true}
	}

	var processedAt sql.NullTime
	if !entry.ProcessedAt().IsZero() {
		processedAt = sql.NullTime{Time: entry.ProcessedAt(), Valid: true}
	}

	return QueueEntryModel{
		ID:           entry.ID(),
		ProjectID:    entry.ProjectID(),
		Text:         entry.Text(),
		Priority:     entry.Priority(),
		Status:       string(entry.Status()),
		Embedding:    embedding,
		ErrorMessage: errorMessage,
		CreatedAt:    entry.CreatedAt(),
		ProcessedAt:  processedAt,
	}
}
