package dto

import "time"

// MemoryRefSchema is a preview of a neighbouring memory, drillable by
// its handle.
type MemoryRefSchema struct {
	Handle     int     `json:"handle"`
	MemoryID   string  `json:"memory_id"`
	Role       string  `json:"role,omitempty"`
	Preview    string  `json:"preview"`
	Similarity float64 `json:"similarity,omitempty"`
}

// CodeRefSchema is a code location linked to a memory.
type CodeRefSchema struct {
	Handle       int    `json:"handle"`
	FilePath     string `json:"file_path"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	FunctionName string `json:"function_name,omitempty"`
}

// MemoryDetail is the expanded memory view: the pivot row plus its
// conversational neighbourhood.
type MemoryDetail struct {
	ID           string            `json:"id"`
	Role         string            `json:"role,omitempty"`
	Content      string            `json:"content"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Paired       *MemoryRefSchema  `json:"paired,omitempty"`
	Before       []MemoryRefSchema `json:"before,omitempty"`
	After        []MemoryRefSchema `json:"after,omitempty"`
	Related      []MemoryRefSchema `json:"related,omitempty"`
	CodeRefs     []CodeRefSchema   `json:"code_refs,omitempty"`
	ChildHandles []int             `json:"child_handles,omitempty"`
}

// CodeDetail is the expanded code view, cut to the requested zoom budget.
type CodeDetail struct {
	FilePath  string `json:"file_path"`
	Name      string `json:"name,omitempty"`
	DefType   string `json:"def_type,omitempty"`
	Language  string `json:"language,omitempty"`
	LineRange string `json:"line_range,omitempty"`
	Content   string `json:"content"`
}

// DrilldownResponse is the GET /v1/drilldown/{handle} response. Exactly
// one of Memory and Code is set, matching Kind.
type DrilldownResponse struct {
	Handle int           `json:"handle"`
	Kind   string        `json:"kind"`
	Memory *MemoryDetail `json:"memory,omitempty"`
	Code   *CodeDetail   `json:"code,omitempty"`
}
