// Package v1 implements the v1 REST endpoints over a specmem Client.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/api/middleware"
	"github.com/specmem/specmem/infrastructure/api/v1/dto"
)

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	client *specmem.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *specmem.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Search)

	return router
}

// Search handles POST /v1/search: one camera-roll page for the query.
// Without a zoom the page level comes from the adaptive config.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req,
			middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	opts, err := shotOptions(body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	result, err := r.client.Search.Search(ctx, body.Query, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, buildSearchResponse(result))
}

func shotOptions(body dto.SearchRequest) ([]service.ShotOption, error) {
	var opts []service.ShotOption
	if body.Zoom != "" {
		zoom := search.ZoomLevel(body.Zoom)
		if !search.ValidZoom(zoom) {
			return nil, middleware.NewAPIError(http.StatusBadRequest,
				fmt.Sprintf("unknown zoom level: %s", body.Zoom), nil)
		}
		opts = append(opts, service.AtZoom(zoom))
	}
	if body.Limit != nil && *body.Limit > 0 {
		opts = append(opts, service.WithShotLimit(*body.Limit))
	}
	if body.Threshold != nil {
		opts = append(opts, service.WithShotThreshold(*body.Threshold))
	}
	return opts, nil
}

func buildSearchResponse(result search.Result) dto.SearchResponse {
	items := result.Items()
	data := make([]dto.SearchItem, len(items))
	for i, item := range items {
		data[i] = dto.SearchItem{
			Handle:         item.DrilldownID(),
			MemoryID:       item.MemoryID(),
			Role:           item.Role(),
			Content:        item.Content(),
			Similarity:     item.Similarity(),
			Date:           item.Date(),
			PairedResponse: item.PairedResponse(),
		}
	}

	return dto.SearchResponse{
		Query: result.Query(),
		Zoom:  string(result.Zoom()),
		Total: result.Total(),
		Items: data,
	}
}
