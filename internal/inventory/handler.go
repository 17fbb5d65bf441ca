package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Handler manages inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/low-stock", h.lowStock)
	r.Get("/items/{id}", h.showItem)
	r.Patch("/items/{id}", h.updateItem)
	r.Get("/items/{id}/stock", h.itemStock)
	r.Get("/items/{id}/movements", h.itemMovements)
	r.Get("/warehouses", h.listWarehouses)
	r.Post("/warehouses", h.createWarehouse)
	r.Post("/inventory/transfers", h.postTransfer)
	r.Post("/inventory/adjustments", h.postAdjustment)
}

type itemForm struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Unit         string          `json:"unit" validate:"omitempty,max=20"`
	Cost         decimal.Decimal `json:"cost"`
	Price        decimal.Decimal `json:"price"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

type itemPatch struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Unit         *string          `json:"unit,omitempty" validate:"omitempty,max=20"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
}

type warehouseForm struct {
	Name     string `json:"name" validate:"required,max=120"`
	Location string `json:"location" validate:"omitempty,max=300"`
}

type transferForm struct {
	ItemID         int64           `json:"item_id" validate:"required,gt=0"`
	SrcWarehouseID int64           `json:"src_warehouse_id" validate:"required,gt=0"`
	DstWarehouseID int64           `json:"dst_warehouse_id" validate:"required,gt=0,nefield=SrcWarehouseID"`
	Qty            decimal.Decimal `json:"qty"`
	Reason         string          `json:"reason" validate:"omitempty,max=300"`
}

type adjustmentForm struct {
	ItemID      int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Qty         decimal.Decimal `json:"qty"`
	Reason      string          `json:"reason" validate:"required,max=300"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page := shared.NewPagination(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 50), 0)
	items, total, err := h.service.ListItems(r.Context(), ItemFilters{
		Search: r.URL.Query().Get("q"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		h.respondErr(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": shared.NewPagination(page.Page, page.PerPage, total)})
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var form itemForm
	if !h.decode(w, r, &form) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), ItemInput(form))
	if err != nil {
		h.respondErr(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.respondErr(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch itemPatch
	if !h.decode(w, r, &patch) {
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, ItemUpdate(patch))
	if err != nil {
		h.respondErr(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) itemStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	levels, err := h.service.StockLevels(r.Context(), id)
	if err != nil {
		h.respondErr(w, "stock levels", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": levels})
}

func (h *Handler) itemMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.Movements(r.Context(), id, httpx.QueryInt(r, "limit", 50))
	if err != nil {
		h.respondErr(w, "item movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": movements})
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		h.respondErr(w, "list warehouses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": warehouses})
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var form warehouseForm
	if !h.decode(w, r, &form) {
		return
	}
	wh, err := h.service.CreateWarehouse(r.Context(), WarehouseInput(form))
	if err != nil {
		h.respondErr(w, "create warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wh)
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	var form transferForm
	if !h.decode(w, r, &form) {
		return
	}
	movement, err := h.service.PostTransfer(r.Context(), TransferInput{
		ItemID:         form.ItemID,
		SrcWarehouseID: form.SrcWarehouseID,
		DstWarehouseID: form.DstWarehouseID,
		Qty:            form.Qty,
		Reason:         form.Reason,
		IdempotencyKey: r.Header.Get(httpx.IdempotencyHeader),
	})
	if err != nil {
		h.respondErr(w, "post transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var form adjustmentForm
	if !h.decode(w, r, &form) {
		return
	}
	movement, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ItemID:         form.ItemID,
		WarehouseID:    form.WarehouseID,
		Qty:            form.Qty,
		Reason:         form.Reason,
		IdempotencyKey: r.Header.Get(httpx.IdempotencyHeader),
	})
	if err != nil {
		h.respondErr(w, "post adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}
