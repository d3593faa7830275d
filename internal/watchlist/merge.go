// Package watchlist reconciles explicit watchlist entries with holdings.
package watchlist

import (
	"strconv"
	"strings"

	"trade_dashboard/internal/models"
)

// RemoveHoldingWarning is shown when a holding-derived entry is removed.
const RemoveHoldingWarning = "Cannot remove holdings from watchlist"

// NormalizeSymbol is the case-insensitive key that identifies a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FromHolding derives the watchlist entry shown for a holding at position idx.
func FromHolding(h models.HoldingRecord, idx int) models.WatchlistEntry {
	change := h.Price - h.Avg
	percent := 0.0
	if h.Avg != 0 {
		percent = change / h.Avg * 100
	}
	return models.WatchlistEntry{
		ID:            "holding-" + strconv.Itoa(idx),
		StockSymbol:   NormalizeSymbol(h.Name),
		StockName:     h.Name,
		CurrentPrice:  h.Price,
		PriceChange:   change,
		PercentChange: percent,
		IsHolding:     true,
	}
}

// Merge builds the unified watchlist: explicit entries first, in their order,
// then one derived entry per holding whose symbol is not already present.
// Each normalized symbol appears at most once and the first occurrence wins.
// Merge is pure and deterministic.
func Merge(explicit []models.WatchlistEntry, holdings []models.HoldingRecord) []models.WatchlistEntry {
	occupied := make(map[string]struct{}, len(explicit)+len(holdings))
	merged := make([]models.WatchlistEntry, 0, len(explicit)+len(holdings))

	for _, e := range explicit {
		sym := NormalizeSymbol(e.StockSymbol)
		if _, dup := occupied[sym]; dup {
			continue
		}
		occupied[sym] = struct{}{}
		e.StockSymbol = sym
		e.IsHolding = false
		merged = append(merged, e)
	}

	for i, h := range holdings {
		entry := FromHolding(h, i)
		if _, dup := occupied[entry.StockSymbol]; dup {
			continue
		}
		occupied[entry.StockSymbol] = struct{}{}
		merged = append(merged, entry)
	}

	return merged
}

// CanRemove reports whether an entry may be deleted from the backend.
func CanRemove(e models.WatchlistEntry) bool {
	return !e.IsHolding
}

// Label is the chart label of an entry: its name, else its symbol.
func Label(e models.WatchlistEntry) string {
	if e.StockName != "" {
		return e.StockName
	}
	return e.StockSymbol
}
