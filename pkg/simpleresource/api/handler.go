package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// principalHeader carries the authenticated principal id, extracted by
// the gateway upstream of this service.
const principalHeader = "X-Principal-Id"

// ResourceHandler handles HTTP requests for resources using pkg/simpleresource
type ResourceHandler struct {
	service  simpleresource.Service
	validate *validator.Validate
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(service simpleresource.Service) *ResourceHandler {
	return &ResourceHandler{
		service:  service,
		validate: validator.New(),
	}
}

// Routes returns the routes for resources
func (h *ResourceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateResource)
	r.Get("/", h.ListResources)
	r.Get("/{id}", h.GetResource)
	r.Put("/{id}", h.UpdateResource)
	r.Delete("/{id}", h.DeleteResource)

	return r
}

// CreateResourceRequest is the request body for creating a resource
type CreateResourceRequest struct {
	Category string                 `json:"category" validate:"required,oneof=product user order"`
	Data     map[string]interface{} `json:"data" validate:"required"`
}

// ResourceResponse is the response body for a resource
type ResourceResponse struct {
	*simpleresource.Resource
	// Degraded marks a response whose authoritative write succeeded but
	// whose backup mirror did not; the caller may retry the operation
	// to re-mirror.
	Degraded bool `json:"degraded,omitempty"`
}

// errorResponse is the stable error shape. Internal error detail never
// crosses this boundary; the request id correlates with server logs.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func principal(r *http.Request) string {
	if p := r.Header.Get(principalHeader); p != "" {
		return p
	}
	return "anonymous"
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeServiceError maps a service failure onto the stable error kinds.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simpleresource.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "resource already exists")
	case errors.Is(err, simpleresource.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, simpleresource.ErrPolicyViolation):
		writeError(w, r, http.StatusUnprocessableEntity, "payload rejected by data policy")
	case errors.Is(err, simpleresource.ErrInvalidCategory):
		writeError(w, r, http.StatusBadRequest, "invalid category")
	case errors.Is(err, simpleresource.ErrUpstreamUnavailable):
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, "store temporarily unavailable")
	default:
		var archiveErr *simpleresource.ArchiveError
		if errors.As(err, &archiveErr) {
			writeError(w, r, http.StatusBadGateway, "archival failed, resource not deleted")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// CreateResource creates a new resource
func (h *ResourceHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := h.service.CreateResource(r.Context(), simpleresource.CreateResourceRequest{
		Category: simpleresource.Category(req.Category),
		Data:     req.Data,
		Owner:    principal(r),
	})

	var partial *simpleresource.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		slog.Error("Failed to create resource", "category", req.Category, "error", err)
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/resources/"+res.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ResourceResponse{Resource: res, Degraded: partial != nil})
}

// GetResource retrieves a resource by id
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category := simpleresource.Category(r.URL.Query().Get("category"))

	res, err := h.service.GetResource(r.Context(), id, category)
	if err != nil {
		slog.Error("Failed to get resource", "id", id, "error", err)
		writeServiceError(w, r, err)
		return
	}
	if res == nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(res.Version, 10)))
	render.JSON(w, r, res)
}

// ListResources lists resources in a category
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := simpleresource.ListResourcesRequest{
		Category:  simpleresource.Category(query.Get("category")),
		NextToken: query.Get("next_token"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		req.Limit = limit
	}
	if raw := query.Get("start_date"); raw != "" {
		startDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start_date must be RFC3339")
			return
		}
		req.CreatedAfter = &startDate
	}

	list, err := h.service.ListResources(r.Context(), req)
	if err != nil {
		slog.Error("Failed to list resources", "category", req.Category, "error", err)
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	render.JSON(w, r, list)
}

// UpdateResource applies payload field updates to a resource
func (h *ResourceHandler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(fields) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one field is required")
		return
	}

	res, err := h.service.UpdateResource(r.Context(), simpleresource.UpdateResourceRequest{
		ID:        id,
		Fields:    fields,
		UpdatedBy: principal(r),
	})

	var partial *simpleresource.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		slog.Error("Failed to update resource", "id", id, "error", err)
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(res.Version, 10)))
	render.JSON(w, r, ResourceResponse{Resource: res, Degraded: partial != nil})
}

// DeleteResource deletes a resource, returning the archived record
func (h *ResourceHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category := simpleresource.Category(r.URL.Query().Get("category"))

	archived, err := h.service.DeleteResource(r.Context(), simpleresource.DeleteResourceRequest{
		ID:        id,
		Category:  category,
		DeletedBy: principal(r),
	})
	if err != nil {
		slog.Error("Failed to delete resource", "id", id, "error", err)
		writeServiceError(w, r, err)
		return
	}
	if archived == nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	render.JSON(w, r, archived)
}
