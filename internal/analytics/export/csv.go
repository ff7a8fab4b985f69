// Package export renders analytics payloads to downloadable formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/market-basket/market-basket/internal/analytics"
)

// WriteDetailCSV serialises the detail payload: a summary block, then the
// per-product table, then the daily breakdown, separated by blank lines.
func WriteDetailCSV(w io.Writer, detail analytics.Detail) error {
	writer := csv.NewWriter(w)

	records := [][]string{
		{"Metric", "Value"},
		{"Start Date", detail.StartDate},
		{"End Date", detail.EndDate},
		{"Total Revenue", detail.TotalRevenue.StringFixed(2)},
		{"Total Items Sold", strconv.Itoa(detail.TotalItemsSold)},
		{"Total Orders", strconv.Itoa(detail.TotalOrders)},
		{"Average Order Value", detail.AverageOrderValue.StringFixed(2)},
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	if err := writeBlank(w, writer); err != nil {
		return err
	}

	if err := writer.Write([]string{"Product ID", "Product", "Category", "Quantity", "Revenue", "Price"}); err != nil {
		return err
	}
	for _, stat := range detail.ProductStats {
		if err := writer.Write([]string{
			strconv.FormatInt(stat.ID, 10),
			stat.Name,
			stat.Category,
			strconv.Itoa(stat.Quantity),
			stat.Revenue.StringFixed(2),
			stat.Price.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	if err := writeBlank(w, writer); err != nil {
		return err
	}

	if err := writer.Write([]string{"Date", "Revenue", "Items", "Orders"}); err != nil {
		return err
	}
	for _, day := range detail.DailyBreakdown {
		if err := writer.Write([]string{
			day.Date,
			day.Revenue.StringFixed(2),
			strconv.Itoa(day.Items),
			strconv.Itoa(day.Orders),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSeriesCSV emits the sales chart buckets as CSV.
func WriteSeriesCSV(w io.Writer, points []analytics.SeriesPoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Sales", "Orders"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Date,
			point.Sales.StringFixed(2),
			strconv.Itoa(point.Orders),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeBlank(w io.Writer, writer *csv.Writer) error {
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
