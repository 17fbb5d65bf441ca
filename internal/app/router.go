package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/bizdesk/internal/audit"
	"github.com/odyssey-erp/bizdesk/internal/customers"
	"github.com/odyssey-erp/bizdesk/internal/inventory"
	"github.com/odyssey-erp/bizdesk/internal/observability"
	"github.com/odyssey-erp/bizdesk/internal/payments"
	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
	"github.com/odyssey-erp/bizdesk/internal/purchasing"
	"github.com/odyssey-erp/bizdesk/internal/receipts"
	"github.com/odyssey-erp/bizdesk/internal/reports"
	"github.com/odyssey-erp/bizdesk/internal/sales"
	"github.com/odyssey-erp/bizdesk/internal/suppliers"
	"github.com/odyssey-erp/bizdesk/internal/users"
	"github.com/odyssey-erp/bizdesk/jobs"
)

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	DB                Pinger
	SuppliersHandler  *suppliers.Handler
	CustomersHandler  *customers.Handler
	InventoryHandler  *inventory.Handler
	PurchasingHandler *purchasing.Handler
	PaymentsHandler   *payments.Handler
	ReceiptsHandler   *receipts.Handler
	SalesHandler      *sales.Handler
	UsersHandler      *users.Handler
	ReportsHandler    *reports.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Access            users.Middleware
	Metrics           *observability.Metrics
}

type mounter interface {
	MountRoutes(r chi.Router)
}

// NewRouter constructs the chi.Router with bizdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.DB != nil {
			if err := params.DB.Ping(r.Context()); err != nil {
				params.Logger.Warn("health ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	guarded := func(h mounter, guard func(http.Handler) http.Handler) {
		r.Group(func(r chi.Router) {
			r.Use(guard)
			h.MountRoutes(r)
		})
	}
	access := params.Access
	if params.SuppliersHandler != nil {
		guarded(params.SuppliersHandler, access.RequireWrite(users.PermSuppliersEdit))
	}
	if params.CustomersHandler != nil {
		guarded(params.CustomersHandler, access.RequireWrite(users.PermCustomersEdit))
	}
	if params.InventoryHandler != nil {
		guarded(params.InventoryHandler, access.RequireWrite(users.PermInventoryEdit))
	}
	if params.PurchasingHandler != nil {
		guarded(params.PurchasingHandler, access.RequireWrite(users.PermPurchasingEdit))
	}
	if params.PaymentsHandler != nil {
		guarded(params.PaymentsHandler, access.RequireWrite(users.PermPaymentsEdit))
	}
	if params.ReceiptsHandler != nil {
		guarded(params.ReceiptsHandler, access.RequireWrite(users.PermReceiptsEdit))
	}
	if params.SalesHandler != nil {
		guarded(params.SalesHandler, access.RequireWrite(users.PermSalesEdit))
	}
	if params.UsersHandler != nil {
		guarded(params.UsersHandler, access.Require(users.PermUsersManage))
	}
	if params.ReportsHandler != nil {
		guarded(params.ReportsHandler, access.Require(users.PermReportsView))
	}
	if params.AuditHandler != nil {
		guarded(params.AuditHandler, access.Require(users.PermReportsView))
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(access.RequireWrite(users.PermSequencesAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
