package dashboard

import (
	"context"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/services"
)

// PositionRow is one row of the positions table.
type PositionRow struct {
	models.PositionRecord
	LotRow
}

// PositionsSnapshot is everything the positions page renders.
type PositionsSnapshot struct {
	Status
	Rows   []PositionRow `json:"rows"`
	Totals TotalsView    `json:"totals"`
}

// PositionsView polls /allPositions.
type PositionsView struct {
	*view[[]models.PositionRecord]
}

// NewPositionsView creates an unmounted positions view.
func NewPositionsView(client *api.Client, opts ViewOptions) *PositionsView {
	load := func(ctx context.Context, c *api.Client) ([]models.PositionRecord, int, api.Result) {
		items, res := c.Positions(ctx)
		return items, len(items), res
	}
	return &PositionsView{view: newView[[]models.PositionRecord](ViewPositions, client, load, opts)}
}

// Snapshot builds the positions page from the last fetched data.
func (v *PositionsView) Snapshot() PositionsSnapshot {
	data, st := v.current()

	snap := PositionsSnapshot{
		Status: st,
		Rows:   make([]PositionRow, 0, len(data)),
		Totals: totalsView(services.Aggregate(data)),
	}
	for _, p := range data {
		snap.Rows = append(snap.Rows, PositionRow{PositionRecord: p, LotRow: lotRow(p.Lot(), p.IsLoss)})
	}
	return snap
}
