package dashboard

import (
	"context"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/services"
)

// OrderRow is one row of the orders table.
type OrderRow struct {
	models.OrderRecord

	PriceDisplay string `json:"priceDisplay"`
	StatusLabel  string `json:"statusLabel"`
	StatusClass  string `json:"statusClass"`
	ModeClass    string `json:"modeClass"`
}

// OrdersSnapshot is everything the orders page renders.
type OrdersSnapshot struct {
	Status
	Rows []OrderRow `json:"rows"`
}

// OrdersView fetches /allOrders, by default once per mount.
type OrdersView struct {
	*view[[]models.OrderRecord]
}

// NewOrdersView creates an unmounted orders view.
func NewOrdersView(client *api.Client, opts ViewOptions) *OrdersView {
	load := func(ctx context.Context, c *api.Client) ([]models.OrderRecord, int, api.Result) {
		items, res := c.Orders(ctx)
		return items, len(items), res
	}
	return &OrdersView{view: newView[[]models.OrderRecord](ViewOrders, client, load, opts)}
}

// Snapshot builds the orders page from the last fetched data.
func (v *OrdersView) Snapshot() OrdersSnapshot {
	data, st := v.current()

	snap := OrdersSnapshot{Status: st, Rows: make([]OrderRow, 0, len(data))}
	for _, o := range data {
		snap.Rows = append(snap.Rows, orderRow(o))
	}
	return snap
}

func orderRow(o models.OrderRecord) OrderRow {
	row := OrderRow{
		OrderRecord:  o,
		PriceDisplay: "₹" + services.Fixed2(o.Price),
		StatusLabel:  string(o.Status),
		ModeClass:    ClassLoss,
	}
	if row.StatusLabel == "" {
		row.StatusLabel = string(models.OrderStatusPending)
	}
	switch o.Status {
	case models.OrderStatusCompleted:
		row.StatusClass = ClassProfit
	case models.OrderStatusCancelled:
		row.StatusClass = ClassLoss
	}
	if o.Mode == models.OrderModeBuy {
		row.ModeClass = ClassProfit
	}
	return row
}
