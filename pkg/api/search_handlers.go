package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/middleware"
	"github.com/hivedocs/hivedocs/pkg/observability"
	"github.com/hivedocs/hivedocs/pkg/search"
)

// SearchHandlers serves hybrid search over document chunks. The
// requested document scope is filtered through the access decider before
// any chunk is fetched, so callers only ever rank chunks of documents
// they may read.
type SearchHandlers struct {
	searchService *search.Service
	decider       *access.Decider
	logger        *observability.Logger
}

// NewSearchHandlers creates the search handler group
func NewSearchHandlers(searchService *search.Service, decider *access.Decider, logger *observability.Logger) *SearchHandlers {
	return &SearchHandlers{
		searchService: searchService,
		decider:       decider,
		logger:        logger,
	}
}

// RegisterRoutes registers search routes
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/search", h.search).Methods("POST")
}

type searchRequest struct {
	search.Request
	Passcode *string `json:"passcode,omitempty"`
}

// search handles POST /api/v1/search
func (h *SearchHandlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.DocumentIDs) == 0 {
		httputil.WriteBadRequest(w, "document_ids is required")
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	decisions, err := h.decider.CheckAccessBatch(r.Context(), principal, req.DocumentIDs, req.Passcode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	allowed := make([]uuid.UUID, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		if decisions[id].Allowed {
			allowed = append(allowed, id)
		}
	}
	if len(allowed) == 0 {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	req.Request.DocumentIDs = allowed
	resp, err := h.searchService.Search(r.Context(), req.Request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}
