package dto

// QueueStatsSchema breaks the embedding queue down by lifecycle state.
type QueueStatsSchema struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Waiting    int   `json:"waiting"`
}

// HandleStatsSchema describes the drilldown handle registry.
type HandleStatsSchema struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type,omitempty"`
	Capacity int            `json:"capacity"`
	NextID   int            `json:"next_id"`
}

// StatsResponse is the GET /v1/stats response.
type StatsResponse struct {
	ProjectPath string            `json:"project_path"`
	ProjectID   string            `json:"project_id,omitempty"`
	Schema      string            `json:"schema"`
	Memories    int64             `json:"memories"`
	Embedded    int64             `json:"embedded"`
	Queue       QueueStatsSchema  `json:"queue"`
	Handles     HandleStatsSchema `json:"handles"`
}
