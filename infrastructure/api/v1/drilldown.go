package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/api/middleware"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

// refPreviewChars caps neighbour previews in drilldown responses.
const refPreviewChars = 200

// DrilldownRouter handles handle-expansion endpoints.
type DrilldownRouter struct {
	client *specmem.Client
	logger *slog.Logger
}

// NewDrilldownRouter creates a new DrilldownRouter.
func NewDrilldownRouter(client *specmem.Client) *DrilldownRouter {
	return &DrilldownRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for drilldown endpoints.
func (r *DrilldownRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{handle}", r.Resolve)

	return router
}

// Resolve handles GET /v1/drilldown/{handle}. The handle is a search
// result number or a memory-id prefix. Query parameters: zoom (0-100
// content budget for code views) and context (include the before/after
// session rows, default true).
func (r *DrilldownRouter) Resolve(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	handle := chi.URLParam(req, "handle")

	var opts []service.DrillOption
	if raw := req.URL.Query().Get("zoom"); raw != "" {
		zoom, err := strconv.Atoi(raw)
		if err != nil || zoom < 0 || zoom > 100 {
			middleware.WriteError(w, req,
				middleware.NewAPIError(http.StatusBadRequest, "zoom must be an integer 0-100", err), r.logger)
			return
		}
		opts = append(opts, service.WithDrillZoom(zoom))
	}
	if raw := req.URL.Query().Get("context"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.WriteError(w, req,
				middleware.NewAPIError(http.StatusBadRequest, "context must be a boolean", err), r.logger)
			return
		}
		opts = append(opts, service.WithConversationContext(include))
	}

	view, ok, err := r.client.Drilldown.Resolve(ctx, handle, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if !ok {
		middleware.WriteError(w, req,
			middleware.NewAPIError(http.StatusNotFound,
				fmt.Sprintf("handle %s not found or expired", handle), nil), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, buildDrilldownResponse(view))
}

func buildDrilldownResponse(view service.View) dto.DrilldownResponse {
	response := dto.DrilldownResponse{
		Handle: view.Handle(),
		Kind:   string(view.Kind()),
	}

	switch v := view.(type) {
	case service.MemoryView:
		response.Memory = memoryDetail(v)
	case service.CodeView:
		response.Code = &dto.CodeDetail{
			FilePath:  v.FilePath(),
			Name:      v.Name(),
			DefType:   v.DefType(),
			Language:  v.Language(),
			LineRange: v.LineRange(),
			Content:   v.Content(),
		}
	}

	return response
}

func memoryDetail(v service.MemoryView) *dto.MemoryDetail {
	mem := v.Memory()
	detail := &dto.MemoryDetail{
		ID:           mem.ID(),
		Role:         mem.Role(),
		Content:      mem.Content(),
		Tags:         mem.Tags(),
		CreatedAt:    mem.CreatedAt(),
		Before:       memoryRefs(v.Before()),
		After:        memoryRefs(v.After()),
		Related:      memoryRefs(v.Related()),
		ChildHandles: v.ChildDrilldownIDs(),
	}

	if paired, ok := v.Paired(); ok {
		ref := memoryRef(paired)
		detail.Paired = &ref
	}

	for _, cr := range v.CodeRefs() {
		ptr := cr.Pointer()
		detail.CodeRefs = append(detail.CodeRefs, dto.CodeRefSchema{
			Handle:       cr.Handle(),
			FilePath:     ptr.FilePath(),
			LineStart:    ptr.LineStart(),
			LineEnd:      ptr.LineEnd(),
			FunctionName: ptr.FunctionName(),
		})
	}

	return detail
}

func memoryRefs(refs []service.MemoryRef) []dto.MemoryRefSchema {
	if len(refs) == 0 {
		return nil
	}
	out := make([]dto.MemoryRefSchema, len(refs))
	for i, ref := range refs {
		out[i] = memoryRef(ref)
	}
	return out
}

func memoryRef(ref service.MemoryRef) dto.MemoryRefSchema {
	mem := ref.Memory()
	return dto.MemoryRefSchema{
		Handle:     ref.Handle(),
		MemoryID:   mem.ID(),
		Role:       mem.Role(),
		Preview:    search.Preview(mem.Content(), refPreviewChars),
		Similarity: ref.Similarity(),
	}
}
