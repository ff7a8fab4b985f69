package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/market-basket/market-basket/internal/shared"
)

const topN = 5

// BuildDetail reduces the line items of a window into the detail payload.
// Rows are expected in purchase time order; per-product and per-category
// outputs keep first-seen order.
func BuildDetail(rows []LineRow, window Range, mode PriceMode) Detail {
	detail := Detail{
		StartDate:             window.From().Format(DayLayout),
		EndDate:               window.To().Format(DayLayout),
		TotalRevenue:          decimal.Zero,
		AverageOrderValue:     decimal.Zero,
		ProductStats:          []ProductStat{},
		TopProductsByQuantity: []ProductStat{},
		TopProductsByRevenue:  []ProductStat{},
		ProductDistribution:   []Slice{},
		CategoryDistribution:  []Slice{},
		DailyBreakdown:        []DayStat{},
	}

	orders := make(map[int64]struct{})
	productIndex := make(map[int64]int)
	days := make(map[string]*DayStat)
	dayOrders := make(map[string]map[int64]struct{})

	for _, row := range rows {
		revenue := row.Revenue(mode)
		detail.TotalRevenue = detail.TotalRevenue.Add(revenue)
		detail.TotalItemsSold += row.Quantity
		orders[row.PurchaseID] = struct{}{}

		idx, ok := productIndex[row.ProductID]
		if !ok {
			idx = len(detail.ProductStats)
			productIndex[row.ProductID] = idx
			detail.ProductStats = append(detail.ProductStats, ProductStat{
				ID:       row.ProductID,
				Name:     row.ProductName,
				Category: row.Category,
				Revenue:  decimal.Zero,
				Price:    row.CurrentPrice,
			})
		}
		stat := &detail.ProductStats[idx]
		stat.Quantity += row.Quantity
		stat.Revenue = stat.Revenue.Add(revenue)

		key := row.PurchasedAt.UTC().Format(DayLayout)
		day, ok := days[key]
		if !ok {
			day = &DayStat{Date: key, Revenue: decimal.Zero}
			days[key] = day
			dayOrders[key] = make(map[int64]struct{})
		}
		day.Revenue = day.Revenue.Add(revenue)
		day.Items += row.Quantity
		if _, seen := dayOrders[key][row.PurchaseID]; !seen {
			dayOrders[key][row.PurchaseID] = struct{}{}
			day.Orders++
		}
	}

	detail.TotalOrders = len(orders)
	detail.TotalRevenue = shared.RoundMoney(detail.TotalRevenue)
	if detail.TotalOrders > 0 {
		detail.AverageOrderValue = shared.RoundMoney(detail.TotalRevenue.Div(decimal.NewFromInt(int64(detail.TotalOrders))))
	}

	categoryIndex := make(map[string]int)
	for i := range detail.ProductStats {
		stat := &detail.ProductStats[i]
		stat.Revenue = shared.RoundMoney(stat.Revenue)
		detail.ProductDistribution = append(detail.ProductDistribution, Slice{Name: stat.Name, Value: stat.Quantity})
		ci, ok := categoryIndex[stat.Category]
		if !ok {
			ci = len(detail.CategoryDistribution)
			categoryIndex[stat.Category] = ci
			detail.CategoryDistribution = append(detail.CategoryDistribution, Slice{Name: stat.Category})
		}
		detail.CategoryDistribution[ci].Value += stat.Quantity
	}

	detail.TopProductsByQuantity = topBy(detail.ProductStats, func(a, b ProductStat) bool {
		return a.Quantity > b.Quantity
	})
	detail.TopProductsByRevenue = topBy(detail.ProductStats, func(a, b ProductStat) bool {
		return a.Revenue.GreaterThan(b.Revenue)
	})

	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		day := *days[key]
		day.Revenue = shared.RoundMoney(day.Revenue)
		detail.DailyBreakdown = append(detail.DailyBreakdown, day)
	}
	for i := range detail.DailyBreakdown {
		day := detail.DailyBreakdown[i]
		if detail.HighestRevenueDay == nil || day.Revenue.GreaterThan(detail.HighestRevenueDay.Revenue) {
			detail.HighestRevenueDay = &day
		}
		if detail.MostItemsSoldDay == nil || day.Items > detail.MostItemsSoldDay.Items {
			detail.MostItemsSoldDay = &day
		}
	}
	return detail
}

func topBy(stats []ProductStat, greater func(a, b ProductStat) bool) []ProductStat {
	sorted := make([]ProductStat, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool { return greater(sorted[i], sorted[j]) })
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

// SeriesWindow resolves a period name to its window and bucket layout.
// Unknown periods fall back to a week.
func SeriesWindow(period string, now time.Time) (Range, string, string) {
	now = now.UTC()
	switch period {
	case PeriodMonth:
		return Range{Start: now.AddDate(0, 0, -30), End: now}, DayLayout, PeriodMonth
	case PeriodYear:
		return Range{Start: now.AddDate(0, 0, -365), End: now}, "2006-01", PeriodYear
	default:
		return Range{Start: now.AddDate(0, 0, -7), End: now}, DayLayout, PeriodWeek
	}
}

// BuildSeries buckets purchases for the sales chart. Every bucket in the
// window is present even when nothing was sold.
func BuildSeries(rows []LineRow, period string, now time.Time, mode PriceMode) []SeriesPoint {
	window, layout, _ := SeriesWindow(period, now)

	points := []SeriesPoint{}
	index := make(map[string]int)
	seed := func(key string) {
		if _, ok := index[key]; ok {
			return
		}
		index[key] = len(points)
		points = append(points, SeriesPoint{Date: key, Sales: decimal.Zero})
	}
	if layout == DayLayout {
		for d := window.From(); !d.After(window.To()); d = d.AddDate(0, 0, 1) {
			seed(d.Format(layout))
		}
	} else {
		from := window.From()
		end := window.To()
		for m := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
			seed(m.Format(layout))
		}
	}

	counted := make(map[int64]struct{})
	for _, row := range rows {
		i, ok := index[row.PurchasedAt.UTC().Format(layout)]
		if !ok {
			continue
		}
		points[i].Sales = points[i].Sales.Add(row.Revenue(mode))
		if _, seen := counted[row.PurchaseID]; !seen {
			counted[row.PurchaseID] = struct{}{}
			points[i].Orders++
		}
	}
	for i := range points {
		points[i].Sales = shared.RoundMoney(points[i].Sales)
	}
	return points
}

// BuildStats reduces every line item into the dashboard counters. The top
// seller only changes on a strictly greater count, so the first product to
// reach the maximum keeps the title.
func BuildStats(rows []LineRow, totalProducts int64, mode PriceMode) Stats {
	stats := Stats{TotalProducts: totalProducts, TotalRevenue: decimal.Zero}
	purchases := make(map[int64]struct{})
	sold := make(map[int64]int)
	names := make(map[int64]string)
	var order []int64

	for _, row := range rows {
		stats.TotalSales += row.Quantity
		stats.TotalRevenue = stats.TotalRevenue.Add(row.Revenue(mode))
		purchases[row.PurchaseID] = struct{}{}
		if _, ok := sold[row.ProductID]; !ok {
			order = append(order, row.ProductID)
			names[row.ProductID] = row.ProductName
		}
		sold[row.ProductID] += row.Quantity
	}

	best := 0
	for _, id := range order {
		if sold[id] > best {
			best = sold[id]
			stats.TopSellingProduct = names[id]
		}
	}
	stats.TotalRevenue = shared.RoundMoney(stats.TotalRevenue)
	stats.TotalPurchases = len(purchases)
	return stats
}

// BuildRecent groups line items into purchases, keeping row order.
func BuildRecent(rows []LineRow, mode PriceMode) []RecentPurchase {
	out := []RecentPurchase{}
	index := make(map[int64]int)
	for _, row := range rows {
		i, ok := index[row.PurchaseID]
		if !ok {
			i = len(out)
			index[row.PurchaseID] = i
			out = append(out, RecentPurchase{
				ID:          row.PurchaseID,
				Date:        row.PurchasedAt,
				TotalAmount: decimal.Zero,
				Products:    []RecentLine{},
			})
		}
		p := &out[i]
		p.TotalAmount = p.TotalAmount.Add(row.Revenue(mode))
		p.TotalItems += row.Quantity
		p.Products = append(p.Products, RecentLine{
			Name:     row.ProductName,
			Quantity: row.Quantity,
			Price:    row.Price(mode),
		})
	}
	for i := range out {
		out[i].TotalAmount = shared.RoundMoney(out[i].TotalAmount)
	}
	return out
}
