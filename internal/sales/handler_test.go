package sales

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizdesk/internal/platform/httpx"
)

func newTestRouter(repo *memorySalesRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, NewService(repo, nil, ServiceConfig{})).MountRoutes(r)
	return r
}

func TestHandlerCreatePOS(t *testing.T) {
	router := newTestRouter(newMemorySalesRepo())
	body := `{"warehouse_id":1,"paid":"3000","lines":[{"item_id":1,"qty":"2","unit_price":"1500"}]}`

	req := httptest.NewRequest(http.MethodPost, "/pos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale Sale
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sale))
	assert.Equal(t, "POS-00001", sale.Number)
	assert.Equal(t, ChannelPOS, sale.Channel)
	assert.Len(t, sale.Lines, 1)
}

func TestHandlerRejectsInvalidBody(t *testing.T) {
	router := newTestRouter(newMemorySalesRepo())

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{"warehouse_id":1,"lines":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "min", problem.Fields["Lines"])
}

func TestHandlerMapsCreditLimitToConflict(t *testing.T) {
	router := newTestRouter(newMemorySalesRepo())
	body := `{"customer_id":5,"warehouse_id":1,"lines":[{"item_id":1,"qty":"5","unit_price":"25000"}]}`

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerShowMissingSale(t *testing.T) {
	router := newTestRouter(newMemorySalesRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
