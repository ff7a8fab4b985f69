package products

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductInput is the request body for creating or updating a product.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description" validate:"max=4000"`
	Category    string          `json:"category" validate:"max=100"`
	Image       string          `json:"image" validate:"omitempty,max=2048"`
}

func (in ProductInput) normalized() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	in.Price = in.Price.Round(2)
	return in
}

func (in ProductInput) toProduct() Product {
	return Product{
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		Category:    in.Category,
		Image:       in.Image,
	}
}
