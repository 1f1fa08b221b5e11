package dto

// SearchRequest is the POST /v1/search request body.
type SearchRequest struct {
	Query     string   `json:"query"`
	Zoom      string   `json:"zoom,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// SearchItem is one camera-roll hit.
type SearchItem struct {
	Handle         int     `json:"handle"`
	MemoryID       string  `json:"memory_id"`
	Role           string  `json:"role,omitempty"`
	Content        string  `json:"content"`
	Similarity     float64 `json:"similarity"`
	Date           string  `json:"date,omitempty"`
	PairedResponse string  `json:"paired_response,omitempty"`
}

// SearchResponse is one camera-roll page.
type SearchResponse struct {
	Query string       `json:"query"`
	Zoom  string       `json:"zoom"`
	Total int64        `json:"total"`
	Items []SearchItem `json:"items"`
}
