package dashboard

import (
	"context"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/services"
)

// View names, also used as poller and fetch-log labels.
const (
	ViewHoldings  = "holdings"
	ViewPositions = "positions"
	ViewOrders    = "orders"
	ViewWatchlist = "watchlist"
)

// HoldingRow is one row of the holdings table.
type HoldingRow struct {
	models.HoldingRecord
	LotRow
}

// HoldingsSnapshot is everything the holdings page renders.
type HoldingsSnapshot struct {
	Status
	Rows   []HoldingRow `json:"rows"`
	Totals TotalsView   `json:"totals"`
	Chart  ChartSeries  `json:"chart"`
}

// HoldingsView polls /allHoldings.
type HoldingsView struct {
	*view[[]models.HoldingRecord]
}

// NewHoldingsView creates an unmounted holdings view.
func NewHoldingsView(client *api.Client, opts ViewOptions) *HoldingsView {
	load := func(ctx context.Context, c *api.Client) ([]models.HoldingRecord, int, api.Result) {
		items, res := c.Holdings(ctx)
		return items, len(items), res
	}
	return &HoldingsView{view: newView[[]models.HoldingRecord](ViewHoldings, client, load, opts)}
}

// Records returns the last fetched holdings.
func (v *HoldingsView) Records() []models.HoldingRecord {
	data, _ := v.current()
	return append([]models.HoldingRecord(nil), data...)
}

// Snapshot builds the holdings page from the last fetched data.
func (v *HoldingsView) Snapshot() HoldingsSnapshot {
	data, st := v.current()

	snap := HoldingsSnapshot{
		Status: st,
		Rows:   make([]HoldingRow, 0, len(data)),
		Totals: totalsView(services.Aggregate(data)),
		Chart: ChartSeries{
			Label:  "Stock Price",
			Labels: make([]string, 0, len(data)),
			Data:   make([]float64, 0, len(data)),
		},
	}
	for _, h := range data {
		snap.Rows = append(snap.Rows, HoldingRow{HoldingRecord: h, LotRow: lotRow(h.Lot(), h.IsLoss)})
		snap.Chart.Labels = append(snap.Chart.Labels, h.Name)
		snap.Chart.Data = append(snap.Chart.Data, h.Price)
	}
	return snap
}
