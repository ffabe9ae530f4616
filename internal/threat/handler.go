package threat

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/core/common/validation"
	"github.com/frahmantamala/leaf/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListCategories(ctx context.Context) ([]CategoryResponse, error)
	CreateCategory(ctx context.Context, name string) (*CategoryResponse, error)
	ListThreats(ctx context.Context, categoryID int64) ([]ThreatResponse, error)
	GetThreat(ctx context.Context, id int64) (*ThreatResponse, error)
	CreateThreat(ctx context.Context, req CreateThreatRequest) (*ThreatResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationFieldErrors([]internal.ValidationError{
			{Field: field, Message: field + " must be a positive integer", Code: "gt"},
		})
	}
	return id, nil
}

// GetCategories handles GET /threats/categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, categories)
}

// CreateCategory handles POST /threats/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	c, err := h.Service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, c)
}

// GetThreats handles GET /threats
func (h *Handler) GetThreats(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := parseID(raw, "category_id")
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		categoryID = id
	}

	threats, err := h.Service.ListThreats(r.Context(), categoryID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, threats)
}

// GetThreat handles GET /threats/{id}
func (h *Handler) GetThreat(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	t, err := h.Service.GetThreat(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

// CreateThreat handles POST /threats
func (h *Handler) CreateThreat(w http.ResponseWriter, r *http.Request) {
	var req CreateThreatRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	t, err := h.Service.CreateThreat(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, t)
}
