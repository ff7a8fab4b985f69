package orders

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/market-basket/market-basket/internal/platform/httpx"
)

func newOrderRouter(store *memoryStore) http.Handler {
	svc, _, _ := newTestService(store)
	r := chi.NewRouter()
	r.Route("/orders", NewHandler(slog.Default(), svc).MountRoutes)
	return r
}

func TestHandlerSubmitCreated(t *testing.T) {
	r := newOrderRouter(newMemoryStore())

	rr := httptest.NewRecorder()
	body := `{"purchases":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]}`
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var got struct {
		ID              int64 `json:"id"`
		PurchaseDetails []struct {
			ID         int64   `json:"id"`
			PurchaseID int64   `json:"purchaseId"`
			ProductID  int64   `json:"productId"`
			Quantity   int     `json:"quantity"`
			UnitPrice  float64 `json:"unitPrice"`
		} `json:"purchaseDetails"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, int64(1000), got.ID)
	require.Len(t, got.PurchaseDetails, 2)
	require.Equal(t, 5.25, got.PurchaseDetails[1].UnitPrice)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/1000", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerSubmitBareArray(t *testing.T) {
	r := newOrderRouter(newMemoryStore())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`[{"productId":1,"quantity":1}]`)))
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestHandlerSubmitRejectsMalformed(t *testing.T) {
	store := newMemoryStore()
	r := newOrderRouter(store)

	for _, body := range []string{``, `{}`, `{"purchases":"nope"}`, `{"purchases":[]}`, `42`} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code, body)

		var problem httpx.ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.NotEmpty(t, problem.Detail)
	}
	require.Empty(t, store.orders)
}

func TestHandlerGetMissing(t *testing.T) {
	r := newOrderRouter(newMemoryStore())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/77", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerSubmitIdempotencyKey(t *testing.T) {
	store := newMemoryStore()
	r := newOrderRouter(store)
	body := `{"purchases":[{"productId":1,"quantity":1}]}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set(IdempotencyHeader, "retry-me")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, send().Code)
	require.Equal(t, http.StatusOK, send().Code)
	require.Len(t, store.orders, 1)

	store.keyConflict = true
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "fresh-key")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}
