// Package code provides domain types for indexed source code: extracted
// definitions, file snapshots, and pointers linking memories to code regions.
package code

import (
	"strconv"
	"time"
)

// Definition represents one extracted code definition (function, class,
// method) in code_definitions.
type Definition struct {
	filePath       string
	name           string
	definitionType string
	language       string
	startLine      int
	endLine        int
	content        string
	signature      string
	docstring      string
	exported       bool
}

// NewDefinition creates a Definition.
func NewDefinition(
	filePath, name, definitionType, language string,
	startLine, endLine int,
	content, signature, docstring string,
	exported bool,
) Definition {
	return Definition{
		filePath:       filePath,
		name:           name,
		definitionType: definitionType,
		language:       language,
		startLine:      startLine,
		endLine:        endLine,
		content:        content,
		signature:      signature,
		docstring:      docstring,
		exported:       exported,
	}
}

// FilePath returns the path of the file the definition lives in.
func (d Definition) FilePath() string { return d.filePath }

// Name returns the definition name.
func (d Definition) Name() string { return d.name }

// Type returns the definition kind (function, class, method, ...).
func (d Definition) Type() string { return d.definitionType }

// Language returns the source language.
func (d Definition) Language() string { return d.language }

// StartLine returns the first line of the definition.
func (d Definition) StartLine() int { return d.startLine }

// EndLine returns the last line of the definition.
func (d Definition) EndLine() int { return d.endLine }

// Content returns the full definition source.
func (d Definition) Content() string { return d.content }

// Signature returns the declaration line.
func (d Definition) Signature() string { return d.signature }

// Docstring returns the attached documentation, if any.
func (d Definition) Docstring() string { return d.docstring }

// Exported reports whether the definition is part of the public surface.
func (d Definition) Exported() bool { return d.exported }

// LineRange renders "start-end" for display, or "" when lines are unknown.
func (d Definition) LineRange() string {
	if d.startLine == 0 && d.endLine == 0 {
		return ""
	}
	return strconv.Itoa(d.startLine) + "-" + strconv.Itoa(d.endLine)
}

// File represents one indexed file snapshot in codebase_files.
type File struct {
	filePath   string
	fileName   string
	languageID string
	content    string
	lineCount  int
}

// NewFile creates a File.
func NewFile(filePath, fileName, languageID, content string, lineCount int) File {
	return File{
		filePath:   filePath,
		fileName:   fileName,
		languageID: languageID,
		content:    content,
		lineCount:  lineCount,
	}
}

// Path returns the file path.
func (f File) Path() string { return f.filePath }

// Name returns the base file name.
func (f File) Name() string { return f.fileName }

// LanguageID returns the language identifier.
func (f File) LanguageID() string { return f.languageID }

// Content returns the file content at index time.
func (f File) Content() string { return f.content }

// LineCount returns the number of lines in the snapshot.
func (f File) LineCount() int { return f.lineCount }

// Pointer links a memory to a code region in codebase_pointers.
type Pointer struct {
	memoryID     string
	filePath     string
	lineStart    int
	lineEnd      int
	functionName string
	createdAt    time.Time
}

// NewPointer creates a Pointer.
func NewPointer(memoryID, filePath string, lineStart, lineEnd int, functionName string, createdAt time.Time) Pointer {
	return Pointer{
		memoryID:     memoryID,
		filePath:     filePath,
		lineStart:    lineStart,
		lineEnd:      lineEnd,
		functionName: functionName,
		createdAt:    createdAt,
	}
}

// MemoryID returns the id of the referencing memory.
func (p Pointer) MemoryID() string { return p.memoryID }

// FilePath returns the referenced file path.
func (p Pointer) FilePath() string { return p.filePath }

// LineStart returns the first referenced line.
func (p Pointer) LineStart() int { return p.lineStart }

// LineEnd returns the last referenced line.
func (p Pointer) LineEnd() int { return p.lineEnd }

// FunctionName returns the referenced definition name, if recorded.
func (p Pointer) FunctionName() string { return p.functionName }

// CreatedAt returns when the pointer was recorded.
func (p Pointer) CreatedAt() time.Time { return p.createdAt }
