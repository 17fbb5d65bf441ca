package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Middleware wires role checks for HTTP handlers. When Enforce is false every
// request passes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Enforce bool
}

// Require ensures the acting user holds perm.
func (m Middleware) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.Enforce {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == 0 {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor required")
				return
			}
			err := m.Service.Authorize(r.Context(), actor, perm)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrForbidden):
				httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
			default:
				if m.Logger != nil {
					m.Logger.Error("authorize", slog.Int64("actor", actor), slog.String("perm", perm), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
			}
		})
	}
}

// RequireWrite applies Require(perm) to every method except GET and HEAD.
func (m Middleware) RequireWrite(perm string) func(http.Handler) http.Handler {
	guard := m.Require(perm)
	return func(next http.Handler) http.Handler {
		guarded := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
