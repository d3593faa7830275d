package dashboard

import (
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/services"
)

// CSS-style classes the renderer colours values with.
const (
	ClassProfit = "profit"
	ClassLoss   = "loss"
)

// ChartSeries is a labelled data series ready for a chart.
type ChartSeries struct {
	Label  string    `json:"label"`
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// LotRow is the display form of one holding or position.
type LotRow struct {
	Figures services.RowFigures `json:"figures"`

	AvgDisplay          string `json:"avgDisplay"`
	PriceDisplay        string `json:"priceDisplay"`
	CurrentValueDisplay string `json:"currentValueDisplay"`
	PnLDisplay          string `json:"pnlDisplay"`
	PnLPercentDisplay   string `json:"pnlPercentDisplay"`
	PnLClass            string `json:"pnlClass"`
	DayClass            string `json:"dayClass"`
}

// TotalsView is the portfolio summary with its display strings.
type TotalsView struct {
	models.DerivedTotals

	TotalInvestmentDisplay string `json:"totalInvestmentDisplay"`
	CurrentValueDisplay    string `json:"currentValueDisplay"`
	TotalPnLDisplay        string `json:"totalPnLDisplay"`
	PnLPercentDisplay      string `json:"pnlPercentDisplay"`
	PnLClass               string `json:"pnlClass"`
}

func lotRow(l models.Lot, isLoss bool) LotRow {
	f := services.DeriveRow(l)
	return LotRow{
		Figures:             f,
		AvgDisplay:          "₹" + services.Fixed2(l.Avg),
		PriceDisplay:        "₹" + services.Fixed2(l.Price),
		CurrentValueDisplay: "₹" + services.Fixed2(f.CurrentValue),
		PnLDisplay:          "₹" + services.Fixed2(f.PnL),
		PnLPercentDisplay:   services.Fixed2(f.PnLPercent),
		PnLClass:            classFor(f.IsProfit),
		DayClass:            classFor(!isLoss),
	}
}

func totalsView(t models.DerivedTotals) TotalsView {
	return TotalsView{
		DerivedTotals:          t,
		TotalInvestmentDisplay: services.FormatRupees(t.TotalInvestment),
		CurrentValueDisplay:    services.FormatRupees(t.CurrentValue),
		TotalPnLDisplay:        services.FormatRupees(t.TotalPnL),
		PnLPercentDisplay:      services.Fixed2(t.PnLPercent),
		PnLClass:               classFor(services.IsProfit(t.TotalPnL)),
	}
}

func classFor(profit bool) string {
	if profit {
		return ClassProfit
	}
	return ClassLoss
}
