package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// AdminProduct is a product with the total quantity sold across all purchases.
type AdminProduct struct {
	Product
	Purchases int64 `json:"purchases"`
}

// DeleteResult reports what a cascading product delete removed.
type DeleteResult struct {
	ProductID        int64 `json:"productId"`
	DetailsRemoved   int64 `json:"detailsRemoved"`
	PurchasesRemoved int64 `json:"purchasesRemoved"`
}
