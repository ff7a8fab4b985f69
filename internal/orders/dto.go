package orders

// LineInput is one requested line of an order.
type LineInput struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=2147483647"`
}

// SubmitRequest is the body of POST /orders.
type SubmitRequest struct {
	Purchases []LineInput `json:"purchases" validate:"required,min=1,dive"`
	// IdempotencyKey comes from the Idempotency-Key header. A repeated key
	// returns the purchase it created instead of inserting another.
	IdempotencyKey string `json:"-"`
}
