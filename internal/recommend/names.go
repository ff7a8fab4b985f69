package recommend

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/market-basket/market-basket/internal/products"
)

// DefaultLimit is the number of suggestions shown next to a basket.
const DefaultLimit = 4

// Line is a product name with a quantity, as found in a basket or order.
type Line struct {
	ProductID int64
	Name      string
	Quantity  int
}

// Confirmation is delivered to the recommendation service after an order
// commits. Cart repeats each product name once per unit purchased.
type Confirmation struct {
	PurchaseID int64    `json:"purchaseId"`
	Cart       []string `json:"cart"`
}

// ExpandByQuantity repeats each name quantity times, preserving line order.
func ExpandByQuantity(lines []Line) []string {
	total := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			total += l.Quantity
		}
	}
	out := make([]string, 0, total)
	for _, l := range lines {
		for i := 0; i < l.Quantity; i++ {
			out = append(out, l.Name)
		}
	}
	return out
}

// DistinctNames returns each name once, in first-seen order.
func DistinctNames(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		key := normalize(l.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l.Name)
	}
	return out
}

// Resolve maps recommended names to catalog products. The first catalog
// product whose normalized name equals the recommended name wins. Unknown
// names, products already in the basket and repeats are dropped, and the
// result is truncated to limit entries.
func Resolve(names []string, catalog []products.Product, inBasket map[int64]bool, limit int) []products.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}
	byName := make(map[string]products.Product, len(catalog))
	for _, p := range catalog {
		key := normalize(p.Name)
		if _, ok := byName[key]; !ok {
			byName[key] = p
		}
	}

	out := make([]products.Product, 0, limit)
	picked := make(map[int64]bool, limit)
	for _, name := range names {
		if len(out) == limit {
			break
		}
		p, ok := byName[normalize(name)]
		if !ok || inBasket[p.ID] || picked[p.ID] {
			continue
		}
		picked[p.ID] = true
		out = append(out, p)
	}
	return out
}

func normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
