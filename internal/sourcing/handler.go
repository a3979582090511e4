package sourcing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/platform/httpx"
)

// CatalogPort supplies the snapshot the index is built from.
type CatalogPort interface {
	ListProjects(ctx context.Context) ([]catalog.Project, error)
}

// Handler exposes the sourcing funnel. Each request rebuilds the index from
// the (cached) catalog snapshot, so the funnel always reflects the statuses
// at the time of the call.
type Handler struct {
	logger  *slog.Logger
	catalog CatalogPort
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, cat CatalogPort) *Handler {
	return &Handler{logger: logger, catalog: cat}
}

// MountRoutes registers sourcing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sourcing/materials", h.materials)
	r.Get("/sourcing/products", h.products)
	r.Get("/sourcing/suppliers", h.suppliers)
}

func (h *Handler) index(r *http.Request) (*Index, error) {
	projects, err := h.catalog.ListProjects(r.Context())
	if err != nil {
		return nil, err
	}
	return NewIndex(projects), nil
}

func (h *Handler) materials(w http.ResponseWriter, r *http.Request) {
	idx, err := h.index(r)
	if err != nil {
		h.logger.Error("sourcing index", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	productIDs := idList(r.URL.Query().Get("products"))
	if len(productIDs) == 0 {
		httpx.JSON(w, http.StatusOK, map[string]any{"materials": idx.UnorderedMaterials()})
		return
	}
	supplier := r.URL.Query().Get("supplier")
	httpx.JSON(w, http.StatusOK, map[string]any{"materials": idx.MaterialsFor(productIDs, supplier)})
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	idx, err := h.index(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	projectIDs := idList(r.URL.Query().Get("projects"))
	httpx.JSON(w, http.StatusOK, map[string]any{"products": idx.ProductsWithUnorderedMaterials(projectIDs)})
}

func (h *Handler) suppliers(w http.ResponseWriter, r *http.Request) {
	idx, err := h.index(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productIDs := idList(r.URL.Query().Get("products"))
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": idx.SuppliersFor(productIDs)})
}

func idList(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
