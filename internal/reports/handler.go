package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/suppliers/{id}/statement", h.statement)
		r.Get("/sales-summary", h.salesSummary)
		r.Get("/stock-valuation", h.stockValuation)
		r.Get("/reconciliation", h.reconciliation)
	})
}

func dateRange(r *http.Request) (Range, error) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return Range{}, err
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return Range{}, err
	}
	return Range{From: from, To: to}, nil
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rng, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.SupplierStatement(r.Context(), id, rng)
	if err != nil {
		h.fail(w, "supplier statement", err)
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="statement-`+st.Supplier.Code+`.csv"`)
		if err := WriteStatementCSV(w, st); err != nil {
			h.logger.Error("write statement csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) salesSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.SalesSummary(r.Context(), rng)
	if err != nil {
		h.fail(w, "sales summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) stockValuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.StockValuation(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "stock valuation", err)
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		if err := WriteValuationCSV(w, valuation); err != nil {
			h.logger.Error("write valuation csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) reconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconciliation(r.Context())
	if err != nil {
		h.fail(w, "reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
