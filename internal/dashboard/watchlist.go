package dashboard

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"trade_dashboard/internal/api"
	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/middleware"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/notify"
	"trade_dashboard/internal/services"
	"trade_dashboard/internal/watchlist"
)

// Watchlist messages.
const (
	MissingSymbolMessage = "Please enter stock symbol and price"
	InvalidSymbolMessage = "Please enter a valid stock symbol"
	AddFailedMessage     = "Failed to add stock"
	RemoveFailedMessage  = "Failed to remove stock"
)

// WatchlistRow is one entry of the merged watchlist.
type WatchlistRow struct {
	models.WatchlistEntry

	PriceDisplay         string `json:"priceDisplay"`
	PriceChangeDisplay   string `json:"priceChangeDisplay"`
	PercentChangeDisplay string `json:"percentChangeDisplay"`
	Direction            string `json:"direction"`
	Removable            bool   `json:"removable"`
}

// WatchlistSnapshot is everything the watchlist panel renders.
type WatchlistSnapshot struct {
	Status
	Count   int            `json:"count"`
	Entries []WatchlistRow `json:"entries"`
	Chart   ChartSeries    `json:"chart"`

	// ActionError is the message of the last failed add or remove.
	ActionError string `json:"actionError,omitempty"`
}

// WatchlistView polls /watchlist and /allHoldings and shows their merge.
type WatchlistView struct {
	*view[[]models.WatchlistEntry]

	actions *api.Client
	notify  notify.Publisher
}

// NewWatchlistView creates an unmounted watchlist view. Mutations go through
// their own fork of client so they do not disturb the polling state.
func NewWatchlistView(client *api.Client, publisher notify.Publisher, opts ViewOptions) *WatchlistView {
	return &WatchlistView{
		view:    newView[[]models.WatchlistEntry](ViewWatchlist, client, loadWatchlist, opts),
		actions: client.Fork(),
		notify:  publisher,
	}
}

// loadWatchlist fetches both sources in turn. If either fails the previous
// merge stays on screen.
func loadWatchlist(ctx context.Context, c *api.Client) ([]models.WatchlistEntry, int, api.Result) {
	explicit, res := c.Watchlist(ctx)
	if !res.Success {
		return nil, 0, res
	}
	holdings, res := c.Holdings(ctx)
	if !res.Success {
		return nil, 0, res
	}
	merged := watchlist.Merge(explicit, holdings)
	return merged, len(merged), res
}

// Entries returns the last merged watchlist.
func (v *WatchlistView) Entries() []models.WatchlistEntry {
	data, _ := v.current()
	return append([]models.WatchlistEntry(nil), data...)
}

// Snapshot builds the watchlist panel from the last merge.
func (v *WatchlistView) Snapshot() WatchlistSnapshot {
	data, st := v.current()

	snap := WatchlistSnapshot{
		Status:      st,
		ActionError: v.ActionError(),
		Count:       len(data),
		Entries:     make([]WatchlistRow, 0, len(data)),
		Chart: ChartSeries{
			Label:  "Price",
			Labels: make([]string, 0, len(data)),
			Data:   make([]float64, 0, len(data)),
		},
	}
	for _, e := range data {
		direction := "up"
		if e.PercentChange < 0 {
			direction = "down"
		}
		snap.Entries = append(snap.Entries, WatchlistRow{
			WatchlistEntry:       e,
			PriceDisplay:         "₹" + services.Fixed2(e.CurrentPrice),
			PriceChangeDisplay:   services.Fixed2(e.PriceChange),
			PercentChangeDisplay: services.Fixed2(e.PercentChange),
			Direction:            direction,
			Removable:            watchlist.CanRemove(e),
		})
		snap.Chart.Labels = append(snap.Chart.Labels, watchlist.Label(e))
		snap.Chart.Data = append(snap.Chart.Data, e.CurrentPrice)
	}
	return snap
}

// Add stores symbol with price as an explicit entry and refetches the list.
func (v *WatchlistView) Add(ctx context.Context, symbol, price string) error {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(price) == "" {
		v.notify.Emit(MissingSymbolMessage, models.SeverityWarning)
		return apperrors.Validation(MissingSymbolMessage)
	}
	if !middleware.ValidateSymbol(symbol) {
		v.notify.Emit(InvalidSymbolMessage, models.SeverityWarning)
		return apperrors.ValidationField("symbol", InvalidSymbolMessage)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		v.notify.Emit(MissingSymbolMessage, models.SeverityWarning)
		return apperrors.ValidationField("price", MissingSymbolMessage)
	}

	upper := watchlist.NormalizeSymbol(symbol)
	res := v.actions.AddWatchlist(ctx, api.WatchlistRequest{
		StockSymbol:  upper,
		StockName:    upper,
		CurrentPrice: value,
	})
	if !res.Success {
		return v.failed(res, AddFailedMessage)
	}

	v.notify.Emit(fmt.Sprintf("%s added to watchlist", symbol), models.SeveritySuccess)
	v.Refresh()
	return nil
}

// Remove deletes the entry with id. Entries derived from holdings are
// refused before any request is made.
func (v *WatchlistView) Remove(ctx context.Context, id string) error {
	entry, found := v.lookup(id)
	if (found && !watchlist.CanRemove(entry)) || (!found && strings.HasPrefix(id, "holding-")) {
		v.notify.Emit(watchlist.RemoveHoldingWarning, models.SeverityWarning)
		return apperrors.Validation(watchlist.RemoveHoldingWarning)
	}

	res := v.actions.RemoveWatchlist(ctx, id)
	if !res.Success {
		return v.failed(res, RemoveFailedMessage)
	}

	name := entry.StockName
	if name == "" {
		name = id
	}
	v.notify.Emit(fmt.Sprintf("%s removed from watchlist", name), models.SeveritySuccess)
	v.Refresh()
	return nil
}

func (v *WatchlistView) lookup(id string) (models.WatchlistEntry, bool) {
	data, _ := v.current()
	for _, e := range data {
		if e.ID == id {
			return e, true
		}
	}
	return models.WatchlistEntry{}, false
}

func (v *WatchlistView) failed(res api.Result, fallback string) error {
	msg := res.Message
	if msg == "" {
		msg = fallback
	}
	v.notify.Emit(msg, models.SeverityError)

	kind := res.Kind
	if kind == nil {
		kind = apperrors.ErrRejected
	}
	return apperrors.New(kind, msg)
}

// ActionError returns the error of the last add or remove, if it failed.
func (v *WatchlistView) ActionError() string {
	return v.actions.LastError()
}
