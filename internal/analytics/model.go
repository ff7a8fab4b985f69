package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceMode selects the unit price used to value a line item.
type PriceMode string

const (
	// PriceSnapshot uses the unit price captured when the order was placed.
	PriceSnapshot PriceMode = "snapshot"
	// PriceLive uses the product's current catalog price.
	PriceLive PriceMode = "live"
)

// ParsePriceMode accepts "snapshot" or "live"; empty defaults to snapshot.
func ParsePriceMode(raw string) (PriceMode, bool) {
	switch PriceMode(raw) {
	case "", PriceSnapshot:
		return PriceSnapshot, true
	case PriceLive:
		return PriceLive, true
	}
	return "", false
}

// Period names accepted by the sales series.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// DayLayout formats calendar days in reports and query parameters.
const DayLayout = "2006-01-02"

// LineRow is one purchase detail joined with its purchase and product.
type LineRow struct {
	PurchaseID   int64
	PurchasedAt  time.Time
	ProductID    int64
	ProductName  string
	Category     string
	Quantity     int
	UnitPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
}

// Price returns the unit price used for revenue under mode.
func (l LineRow) Price(mode PriceMode) decimal.Decimal {
	if mode == PriceLive {
		return l.CurrentPrice
	}
	return l.UnitPrice
}

// Revenue is quantity times the mode's unit price.
func (l LineRow) Revenue(mode PriceMode) decimal.Decimal {
	return l.Price(mode).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ProductStat aggregates one product's sales inside a window.
type ProductStat struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
	Price    decimal.Decimal `json:"price"`
}

// Slice is a named share of a distribution chart.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DayStat aggregates a single calendar day.
type DayStat struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Items   int             `json:"items"`
	Orders  int             `json:"orders"`
}

// Detail is the full analytics payload for a date range.
type Detail struct {
	StartDate             string          `json:"startDate"`
	EndDate               string          `json:"endDate"`
	TotalRevenue          decimal.Decimal `json:"totalRevenue"`
	TotalItemsSold        int             `json:"totalItemsSold"`
	TotalOrders           int             `json:"totalOrders"`
	AverageOrderValue     decimal.Decimal `json:"averageOrderValue"`
	ProductStats          []ProductStat   `json:"productStats"`
	TopProductsByQuantity []ProductStat   `json:"topProductsByQuantity"`
	TopProductsByRevenue  []ProductStat   `json:"topProductsByRevenue"`
	ProductDistribution   []Slice         `json:"productDistribution"`
	CategoryDistribution  []Slice         `json:"categoryDistribution"`
	DailyBreakdown        []DayStat       `json:"dailyBreakdown"`
	HighestRevenueDay     *DayStat        `json:"highestRevenueDay"`
	MostItemsSoldDay      *DayStat        `json:"mostItemsSoldDay"`
}

// SeriesPoint is one bucket of the sales chart.
type SeriesPoint struct {
	Date   string          `json:"date"`
	Sales  decimal.Decimal `json:"sales"`
	Orders int             `json:"orders"`
}

// Stats holds the dashboard counters.
type Stats struct {
	TotalProducts     int64           `json:"totalProducts"`
	TotalSales        int             `json:"totalSales"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TopSellingProduct string          `json:"topSellingProduct"`
	TotalPurchases    int             `json:"totalPurchases"`
}

// RecentLine is a line of a recent purchase.
type RecentLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// RecentPurchase summarises one order for the dashboard feed.
type RecentPurchase struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int             `json:"totalItems"`
	Products    []RecentLine    `json:"products"`
}

// Range is an inclusive window of calendar days in UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// From returns the first instant of the window.
func (r Range) From() time.Time { return startOfDay(r.Start) }

// To returns the last instant of the window.
func (r Range) To() time.Time { return endOfDay(r.End) }

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
