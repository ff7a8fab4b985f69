package recommend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Confirmer is the upstream purchase confirmation call.
type Confirmer interface {
	ConfirmPurchase(ctx context.Context, cart []string) error
}

// DetachedNotifier confirms purchases on a background goroutine. It is used
// when no task queue is configured. The call outlives the request context and
// is bounded by its own timeout.
type DetachedNotifier struct {
	confirmer Confirmer
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDetachedNotifier builds a DetachedNotifier.
func NewDetachedNotifier(confirmer Confirmer, timeout time.Duration, logger *slog.Logger) *DetachedNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DetachedNotifier{confirmer: confirmer, timeout: timeout, logger: logger}
}

// NotifyPurchase starts the confirmation and returns immediately.
func (n *DetachedNotifier) NotifyPurchase(ctx context.Context, c Confirmation) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.confirmer.ConfirmPurchase(ctx, c.Cart); err != nil {
			n.logger.Warn("confirm purchase failed", slog.Int64("purchase_id", c.PurchaseID), slog.Any("error", err))
			return
		}
		n.logger.Debug("purchase confirmed", slog.Int64("purchase_id", c.PurchaseID), slog.Int("items", len(c.Cart)))
	}()
	return nil
}

// Wait blocks until in-flight confirmations finish. Used on shutdown.
func (n *DetachedNotifier) Wait() {
	n.wg.Wait()
}
