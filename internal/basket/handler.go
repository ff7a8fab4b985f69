package basket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/market-basket/market-basket/internal/platform/httpx"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/internal/shared"
)

// ProductLookup resolves product ids to current catalog entries.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// Suggester produces basket suggestions.
type Suggester interface {
	Suggest(ctx context.Context, basket []recommend.Line) ([]products.Product, error)
}

// HandlerConfig carries the session cookie settings.
type HandlerConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Handler serves the session basket API.
type Handler struct {
	logger    *slog.Logger
	storage   *RedisStorage
	products  ProductLookup
	submit    SubmitFunc
	suggester Suggester
	cfg       HandlerConfig
}

// NewHandler builds the basket handler.
func NewHandler(logger *slog.Logger, storage *RedisStorage, lookup ProductLookup, submit SubmitFunc, suggester Suggester, cfg HandlerConfig) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "mb_basket"
	}
	return &Handler{logger: logger, storage: storage, products: lookup, submit: submit, suggester: suggester, cfg: cfg}
}

// View is the JSON representation of a basket.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
}

func viewOf(s *Store) View {
	return View{
		Items:      s.Items(),
		TotalItems: s.Total(),
		Subtotal:   shared.RoundMoney(s.Subtotal()),
		Tax:        s.Tax(),
		Total:      shared.RoundMoney(s.Grand()),
	}
}

type addRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// session returns the caller's session id, issuing a new cookie when the
// request carries none or an invalid one.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.TTL > 0 {
		cookie.MaxAge = int(h.cfg.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return id
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*Store, string, bool) {
	sid := h.session(w, r)
	store, err := Open(r.Context(), h.storage.Session(sid))
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			h.logger.Error("open basket failed", "error", err, "session", sid)
			httpx.RespondError(w, shared.Persistence("open basket", err))
			return nil, sid, false
		}
		h.logger.Warn("resetting corrupt basket", "error", err, "session", sid)
		store = &Store{storage: h.storage.Session(sid)}
		if err := store.Clear(r.Context()); err != nil {
			httpx.RespondError(w, shared.Persistence("reset basket", err))
			return nil, sid, false
		}
	}
	return store, sid, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.open(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(store))
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	var req addRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.ProductID <= 0 {
		httpx.RespondError(w, shared.Validationf("productId is required"))
		return
	}
	product, err := h.products.Get(r.Context(), req.ProductID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := store.Add(r.Context(), product, req.Quantity); err != nil {
		h.mutationFailed(w, "add to basket", err, sid, req.ProductID)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(store))
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Quantity == nil {
		httpx.RespondError(w, shared.Validationf("quantity is required"))
		return
	}
	if err := store.UpdateQuantity(r.Context(), id, *req.Quantity); err != nil {
		h.mutationFailed(w, "update basket", err, sid, id)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(store))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := store.Remove(r.Context(), id); err != nil {
		h.logger.Error("remove from basket failed", "error", err, "session", sid, "product_id", id)
		httpx.RespondError(w, shared.Persistence("remove from basket", err))
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(store))
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		h.logger.Error("clear basket failed", "error", err, "session", sid)
		httpx.RespondError(w, shared.Persistence("clear basket", err))
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(store))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	order, err := store.Checkout(r.Context(), h.submit)
	if err != nil {
		if order.ID != 0 {
			h.logger.Warn("order placed but basket not cleared", "error", err, "session", sid, "purchase_id", order.ID)
			httpx.JSON(w, http.StatusCreated, order)
			return
		}
		h.logger.Error("checkout failed", "error", err, "session", sid)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	store, sid, ok := h.open(w, r)
	if !ok {
		return
	}
	suggested, err := h.suggester.Suggest(r.Context(), store.Lines())
	if err != nil {
		h.logger.Error("basket recommendations failed", "error", err, "session", sid)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suggested)
}

func (h *Handler) mutationFailed(w http.ResponseWriter, op string, err error, sid string, productID int64) {
	if errors.Is(err, shared.ErrValidation) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(op+" failed", "error", err, "session", sid, "product_id", productID)
	httpx.RespondError(w, shared.Persistence(op, err))
}
