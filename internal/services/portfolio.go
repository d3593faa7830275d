// Package services contains business logic for the trading dashboard.
package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"trade_dashboard/internal/models"
)

// MarginRate is the fraction of an order's notional value held as margin.
const MarginRate = 0.20

// Costed is anything that can report its cost basis.
type Costed interface {
	Lot() models.Lot
}

// RowFigures holds the per-row values shown in the holdings and positions tables.
type RowFigures struct {
	CurrentValue  float64 `json:"currentValue"`
	InvestedValue float64 `json:"investedValue"`
	PnL           float64 `json:"pnl"`
	PnLPercent    float64 `json:"pnlPercent"`
	IsProfit      bool    `json:"isProfit"`
}

// RowPnL returns the unrealized profit or loss of a lot.
func RowPnL(avg, price, qty float64) float64 {
	return (price - avg) * qty
}

// RowPnLPercent returns the profit or loss as a percentage of the invested amount.
// A lot with nothing invested reports 0.
func RowPnLPercent(avg, price, qty float64) float64 {
	invested := avg * qty
	if invested == 0 {
		return 0
	}
	return RowPnL(avg, price, qty) / invested * 100
}

// IsProfit classifies a value on its unrounded sign. Zero counts as profit.
func IsProfit(pnl float64) bool {
	return pnl >= 0
}

// DeriveRow computes the display figures for one lot.
func DeriveRow(l models.Lot) RowFigures {
	pnl := RowPnL(l.Avg, l.Price, l.Qty)
	return RowFigures{
		CurrentValue:  l.Price * l.Qty,
		InvestedValue: l.Avg * l.Qty,
		PnL:           pnl,
		PnLPercent:    RowPnLPercent(l.Avg, l.Price, l.Qty),
		IsProfit:      IsProfit(pnl),
	}
}

// Aggregate sums a set of lots into portfolio totals.
func Aggregate[T Costed](records []T) models.DerivedTotals {
	var totals models.DerivedTotals
	for _, r := range records {
		l := r.Lot()
		totals.TotalInvestment += l.Avg * l.Qty
		totals.CurrentValue += l.Price * l.Qty
	}
	totals.TotalPnL = totals.CurrentValue - totals.TotalInvestment
	if totals.TotalInvestment != 0 {
		totals.PnLPercent = totals.TotalPnL / totals.TotalInvestment * 100
	}
	return totals
}

// MarginRequired returns the collateral needed for an order of qty at price.
func MarginRequired(qty, price float64) float64 {
	return qty * price * MarginRate
}

// Fixed2 renders a value with exactly two decimals.
func Fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatIndian renders a value with at most two decimals and Indian digit
// grouping (12,34,567.8).
func FormatIndian(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	negative := d.IsNegative()
	s := d.Abs().String()

	intPart, fracPart, _ := strings.Cut(s, ".")
	grouped := groupIndian(intPart)
	if fracPart != "" {
		grouped += "." + fracPart
	}
	if negative {
		return "-" + grouped
	}
	return grouped
}

// FormatRupees renders an amount for display with the rupee sign.
func FormatRupees(v float64) string {
	return "₹" + FormatIndian(v)
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var result []byte
	for i, c := range head {
		if i > 0 && (len(head)-i)%2 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result) + "," + tail
}
