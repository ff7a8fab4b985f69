package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a persisted purchase with its line items.
type Order struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Details   []Detail  `json:"purchaseDetails"`
	// Replayed is set when the order was returned for a repeated idempotency key.
	Replayed bool `json:"-"`
}

// Detail is one line item of an order. UnitPrice is the product price at the
// time the order was placed.
type Detail struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchaseId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

// ProductRef is the slice of product data an order needs.
type ProductRef struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}
