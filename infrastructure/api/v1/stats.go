package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/domain/queue"
	"github.com/specmem/specmem/infrastructure/api/middleware"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

// StatsRouter handles project statistics endpoints.
type StatsRouter struct {
	client *specmem.Client
	logger *slog.Logger
}

// NewStatsRouter creates a new StatsRouter.
func NewStatsRouter(client *specmem.Client) *StatsRouter {
	return &StatsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for stats endpoints.
func (r *StatsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Stats)

	return router
}

// Stats handles GET /v1/stats.
func (r *StatsRouter) Stats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.client.Stats(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	byType := make(map[string]int, len(stats.Handles.ByType))
	for entryType, count := range stats.Handles.ByType {
		byType[string(entryType)] = count
	}

	middleware.WriteJSON(w, http.StatusOK, dto.StatsResponse{
		ProjectPath: stats.ProjectPath,
		ProjectID:   stats.ProjectID,
		Schema:      stats.Schema,
		Memories:    stats.Memories,
		Embedded:    stats.Embedded,
		Queue: dto.QueueStatsSchema{
			Pending:    stats.Queue.ByStatus(queue.StatusPending),
			Processing: stats.Queue.ByStatus(queue.StatusProcessing),
			Completed:  stats.Queue.ByStatus(queue.StatusCompleted),
			Failed:     stats.Queue.ByStatus(queue.StatusFailed),
			Waiting:    stats.Queue.Waiting(),
		},
		Handles: dto.HandleStatsSchema{
			Total:    stats.Handles.Total,
			ByType:   byType,
			Capacity: stats.Handles.Capacity,
			NextID:   stats.Handles.NextID,
		},
	})
}
