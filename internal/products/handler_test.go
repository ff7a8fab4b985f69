package products

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	handler := NewHandler(slog.Default(), NewService(repo, nil, nil))
	r := chi.NewRouter()
	r.Route("/products", handler.MountRoutes)
	r.Route("/admin/products", handler.MountAdminRoutes)
	return r, repo
}

func TestHandlerCatalogRoutes(t *testing.T) {
	r, repo := newTestRouter(t)
	_, err := repo.Create(context.Background(), Product{Name: "Apples", Price: decimal.RequireFromString("10.50")})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, "Apples", listed[0]["name"])
	require.Equal(t, 10.5, listed[0]["price"])

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/99", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerAdminLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(`{"name":"Bread","price":3.25,"category":"Bakery"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, int64(1), created.ID)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/products/1", strings.NewReader(`{"name":"Rye Bread","price":4}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/products/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var admin AdminProduct
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &admin))
	require.Equal(t, "Rye Bread", admin.Name)
	require.Zero(t, admin.Purchases)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(`{"price":1}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "name is required")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/products/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/products/1", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
