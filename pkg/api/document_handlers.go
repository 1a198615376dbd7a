package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/documents"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/middleware"
	"github.com/hivedocs/hivedocs/pkg/observability"
)

// DocumentHandlers serves the document and category administration
// surface. Permission gating lives in the document service; handlers
// only shuttle JSON.
type DocumentHandlers struct {
	docService *documents.Service
	logger     *observability.Logger
}

// NewDocumentHandlers creates the document handler group
func NewDocumentHandlers(docService *documents.Service, logger *observability.Logger) *DocumentHandlers {
	return &DocumentHandlers{
		docService: docService,
		logger:     logger,
	}
}

// RegisterRoutes registers document and category routes. quotaGate wraps
// the creation route; pass nil to register it bare.
func (h *DocumentHandlers) RegisterRoutes(router *mux.Router, quotaGate func(http.Handler) http.Handler) {
	create := http.Handler(http.HandlerFunc(h.createDocument))
	if quotaGate != nil {
		create = quotaGate(create)
	}
	router.Handle("/api/v1/documents", create).Methods("POST")
	router.HandleFunc("/api/v1/documents", h.listDocuments).Methods("GET")
	router.HandleFunc("/api/v1/documents/{id}", h.getDocument).Methods("GET")
	router.HandleFunc("/api/v1/documents/{id}", h.updateDocument).Methods("PUT")
	router.HandleFunc("/api/v1/documents/{id}", h.deleteDocument).Methods("DELETE")

	router.HandleFunc("/api/v1/categories", h.createCategory).Methods("POST")
	router.HandleFunc("/api/v1/categories", h.listCategories).Methods("GET")
	router.HandleFunc("/api/v1/categories/{id}", h.deleteCategory).Methods("DELETE")
}

// createDocument handles POST /api/v1/documents
func (h *DocumentHandlers) createDocument(w http.ResponseWriter, r *http.Request) {
	var doc documents.Document
	if !httputil.ParseJSONOrError(w, r, &doc) {
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	if err := h.docService.Create(r.Context(), principal, &doc); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, doc)
}

// listDocuments handles GET /api/v1/documents?tenant_id=...
func (h *DocumentHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	var tenantID *uuid.UUID
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid tenant_id")
			return
		}
		tenantID = &id
	}
	includeInactive := httputil.ParseQueryBool(r, "include_inactive", false)

	principal := middleware.PrincipalFromRequest(r)
	docs, err := h.docService.List(r.Context(), principal, tenantID, includeInactive)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"documents": docs})
}

// getDocument handles GET /api/v1/documents/{id}
func (h *DocumentHandlers) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	doc, err := h.docService.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, doc)
}

// updateDocument handles PUT /api/v1/documents/{id}
func (h *DocumentHandlers) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	var doc documents.Document
	if !httputil.ParseJSONOrError(w, r, &doc) {
		return
	}
	doc.ID = id

	principal := middleware.PrincipalFromRequest(r)
	if err := h.docService.Update(r.Context(), principal, &doc); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, doc)
}

// deleteDocument handles DELETE /api/v1/documents/{id}. Documents are
// soft deleted; the row stays visible to admins.
func (h *DocumentHandlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	if err := h.docService.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// createCategory handles POST /api/v1/categories
func (h *DocumentHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var category documents.Category
	if !httputil.ParseJSONOrError(w, r, &category) {
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	if err := h.docService.CreateCategory(r.Context(), principal, &category); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, category)
}

// listCategories handles GET /api/v1/categories?tenant_id=...
func (h *DocumentHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	var tenantID *uuid.UUID
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid tenant_id")
			return
		}
		tenantID = &id
	}

	principal := middleware.PrincipalFromRequest(r)
	categories, err := h.docService.ListCategories(r.Context(), principal, tenantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"categories": categories})
}

// deleteCategory handles DELETE /api/v1/categories/{id}
func (h *DocumentHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	principal := middleware.PrincipalFromRequest(r)
	if err := h.docService.DeleteCategory(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
