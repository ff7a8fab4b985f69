package orders

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/market-basket/market-basket/internal/platform/httpx"
	"github.com/market-basket/market-basket/internal/shared"
)

// IdempotencyHeader carries the client key that makes order submission safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds an order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	order, err := h.service.Submit(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if order.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, order)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get order failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// decodeSubmit accepts {"purchases": [...]} as well as a bare array of lines.
func decodeSubmit(r *http.Request) (SubmitRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return SubmitRequest{}, shared.Validationf("read body: %v", err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return SubmitRequest{}, shared.Validationf("purchases must be a non-empty array")
	}
	var req SubmitRequest
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &req.Purchases); err != nil {
			return SubmitRequest{}, shared.Validationf("purchases must be an array of {productId, quantity}")
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return SubmitRequest{}, shared.Validationf("malformed JSON body")
		}
		raw, ok := fields["purchases"]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '[' {
			return SubmitRequest{}, shared.Validationf("purchases must be a non-empty array")
		}
		if err := json.Unmarshal(raw, &req.Purchases); err != nil {
			return SubmitRequest{}, shared.Validationf("purchases must be an array of {productId, quantity}")
		}
	default:
		return SubmitRequest{}, shared.Validationf("purchases must be a non-empty array")
	}
	return req, nil
}
