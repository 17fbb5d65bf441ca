package sales

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Handler handles HTTP requests for sales.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Post("/{id}/void", h.void)
	})
	r.Post("/pos", h.createPOS)
}

type lineRequest struct {
	ItemID    int64           `json:"item_id" validate:"required,gt=0"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type createRequest struct {
	Channel     Channel         `json:"channel" validate:"omitempty,oneof=INVOICE POS"`
	CustomerID  *int64          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Paid        decimal.Decimal `json:"paid"`
	Note        string          `json:"note" validate:"max=500"`
	SoldAt      time.Time       `json:"sold_at"`
	Lines       []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

type listResponse struct {
	Data       []Sale            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.NewPagination(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 20), 0)
	items, total, err := h.service.List(r.Context(), ListFilters{
		CustomerID: int64(httpx.QueryInt(r, "customer_id", 0)),
		Channel:    Channel(r.URL.Query().Get("channel")),
		Status:     Status(r.URL.Query().Get("status")),
		From:       from,
		To:         to,
		Limit:      page.PerPage,
		Offset:     page.Offset(),
	})
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: shared.NewPagination(page.Page, page.PerPage, total)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.createWith(w, r, "")
}

func (h *Handler) createPOS(w http.ResponseWriter, r *http.Request) {
	h.createWith(w, r, ChannelPOS)
}

func (h *Handler) createWith(w http.ResponseWriter, r *http.Request, channel Channel) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if channel != "" {
		req.Channel = channel
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{
		Channel:        req.Channel,
		CustomerID:     req.CustomerID,
		WarehouseID:    req.WarehouseID,
		Paid:           req.Paid,
		Note:           req.Note,
		SoldAt:         req.SoldAt,
		IdempotencyKey: r.Header.Get(httpx.IdempotencyHeader),
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput(l))
	}
	sale, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Void(r.Context(), id)
	if err != nil {
		h.fail(w, "void sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
