package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/infrastructure/api/middleware"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

// MemoriesRouter handles memory listing and lookup endpoints.
type MemoriesRouter struct {
	client *specmem.Client
	logger *slog.Logger
}

// NewMemoriesRouter creates a new MemoriesRouter.
func NewMemoriesRouter(client *specmem.Client) *MemoriesRouter {
	return &MemoriesRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for memory endpoints.
func (r *MemoriesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Get("/{id}", r.Get)

	return router
}

// List handles GET /v1/memories: newest first, paginated. A session
// query parameter narrows the page to one session, ordered oldest
// first the way the rows replay.
func (r *MemoriesRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	params := ParsePagination(req)

	if session := req.URL.Query().Get("session"); session != "" {
		mems, err := r.client.Memories.FindBySession(ctx, session, params.Limit())
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, dto.MemoryListResponse{
			Data: memorySchemas(mems),
			Meta: PaginationMeta(params, int64(len(mems))),
		})
		return
	}

	opts := append(params.Options(), repository.WithOrderDesc("created_at"))
	mems, err := r.client.Memories.Find(ctx, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	total, err := r.client.Memories.Count(ctx)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.MemoryListResponse{
		Data: memorySchemas(mems),
		Meta: PaginationMeta(params, total),
	})
}

// Get handles GET /v1/memories/{id}. The id is a memory UUID or a
// drilldown handle number.
func (r *MemoriesRouter) Get(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	mem, ok, err := r.client.Drilldown.Memory(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if !ok {
		middleware.WriteError(w, req,
			middleware.NewAPIError(http.StatusNotFound,
				fmt.Sprintf("memory %s not found", id), nil), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, memorySchema(mem))
}

func memorySchemas(mems []memory.Memory) []dto.MemorySchema {
	out := make([]dto.MemorySchema, len(mems))
	for i, mem := range mems {
		out[i] = memorySchema(mem)
	}
	return out
}

func memorySchema(mem memory.Memory) dto.MemorySchema {
	return dto.MemorySchema{
		ID:           mem.ID(),
		Content:      mem.Content(),
		Tags:         mem.Tags(),
		Metadata:     mem.Metadata(),
		HasEmbedding: mem.HasEmbedding(),
		CreatedAt:    mem.CreatedAt(),
	}
}
