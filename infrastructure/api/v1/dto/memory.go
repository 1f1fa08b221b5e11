package dto

import "time"

// MemorySchema is one memory row in list responses.
type MemorySchema struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	HasEmbedding bool           `json:"has_embedding"`
	CreatedAt    time.Time      `json:"created_at"`
}

// PageMeta carries pagination counters for list responses.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// MemoryListResponse is the GET /v1/memories response.
type MemoryListResponse struct {
	Data []MemorySchema `json:"data"`
	Meta PageMeta       `json:"meta"`
}
