package view

import (
	"fmt"
	"math"
	"strconv"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/pkg/analytics"
)

const crore = 1e7

// Column headers, in display order.
var Columns = []string{"Location", "Year", "Avg Price", "Total Sales", "Units"}

// RowView is one formatted table row.
type RowView struct {
	Location     string
	Year         string
	AveragePrice string
	TotalSales   string
	Units        string
}

// Cells returns the row in Columns order.
func (r RowView) Cells() []string {
	return []string{r.Location, r.Year, r.AveragePrice, r.TotalSales, r.Units}
}

// Table is the formatted preview of a bot message's table.
type Table struct {
	TotalRecords int
	Rows         []RowView
}

// Heading is the caption shown above the table.
func (t *Table) Heading() string {
	return fmt.Sprintf("Data Table (%d records)", t.TotalRecords)
}

// BuildTable formats the preview rows of msg. It returns nil when the
// message has no table rows. The record count covers the full table.
func BuildTable(msg session.BotMessage) *Table {
	if len(msg.TablePreview) == 0 {
		return nil
	}
	t := &Table{
		TotalRecords: len(msg.TableFull),
		Rows:         make([]RowView, len(msg.TablePreview)),
	}
	for i, rec := range msg.TablePreview {
		t.Rows[i] = BuildRow(rec)
	}
	return t
}

// BuildRow formats a single record. Missing or non-numeric values display
// as zero.
func BuildRow(rec analytics.Record) RowView {
	return RowView{
		Location:     rec.Text(analytics.KeyLocation),
		Year:         rec.Text(analytics.KeyYear),
		AveragePrice: "₹" + strconv.FormatFloat(roundHalfUp(number(rec, analytics.KeyAveragePrice)), 'f', 0, 64),
		TotalSales:   fmt.Sprintf("₹%.2fCr", number(rec, analytics.KeyTotalSales)/crore),
		Units:        strconv.FormatFloat(roundHalfUp(number(rec, analytics.KeyTotalUnits)), 'f', 0, 64),
	}
}

func number(rec analytics.Record, key string) float64 {
	f, _ := rec.Float(key)
	return f
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(f float64) float64 {
	r := math.Floor(f + 0.5)
	if r == 0 {
		return 0 // avoid "-0"
	}
	return r
}
