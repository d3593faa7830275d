package watchlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_dashboard/internal/models"
	"trade_dashboard/internal/services"
)

func symbols(entries []models.WatchlistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.StockSymbol
	}
	return out
}

func TestMergeHoldingOnly(t *testing.T) {
	merged := Merge(nil, []models.HoldingRecord{{Name: "TCS", Avg: 100, Price: 120, Qty: 10}})

	require.Len(t, merged, 1)
	entry := merged[0]
	assert.Equal(t, "TCS", entry.StockSymbol)
	assert.True(t, entry.IsHolding)
	assert.Equal(t, "holding-0", entry.ID)
	assert.InDelta(t, 120, entry.CurrentPrice, 1e-9)
	assert.InDelta(t, 20, entry.PriceChange, 1e-9)
	assert.Equal(t, "20.00", services.Fixed2(entry.PercentChange))
}

func TestMergeExplicitTakesPrecedence(t *testing.T) {
	explicit := []models.WatchlistEntry{{ID: "w1", StockSymbol: "tcs", StockName: "TCS", CurrentPrice: 3300}}
	holdings := []models.HoldingRecord{
		{Name: "TCS", Avg: 100, Price: 120, Qty: 10},
		{Name: "infy", Avg: 50, Price: 40, Qty: 2},
	}

	merged := Merge(explicit, holdings)

	assert.Equal(t, []string{"TCS", "INFY"}, symbols(merged))
	assert.Equal(t, "w1", merged[0].ID)
	assert.False(t, merged[0].IsHolding)
	assert.InDelta(t, 3300, merged[0].CurrentPrice, 1e-9)
	assert.True(t, merged[1].IsHolding)
	assert.Equal(t, "holding-1", merged[1].ID)
}

func TestMergeNoDuplicateSymbols(t *testing.T) {
	explicit := []models.WatchlistEntry{
		{ID: "a", StockSymbol: "reliance"},
		{ID: "b", StockSymbol: "RELIANCE"},
		{ID: "c", StockSymbol: " Wipro "},
	}
	holdings := []models.HoldingRecord{
		{Name: "HDFC", Avg: 10, Price: 11},
		{Name: "hdfc", Avg: 20, Price: 22},
		{Name: "wipro", Avg: 1, Price: 2},
		{Name: "Reliance", Avg: 5, Price: 6},
	}

	merged := Merge(explicit, holdings)

	assert.Equal(t, []string{"RELIANCE", "WIPRO", "HDFC"}, symbols(merged))
	assert.Equal(t, "a", merged[0].ID, "first explicit occurrence wins")
	assert.InDelta(t, 11, merged[2].CurrentPrice, 1e-9, "first holding occurrence wins")

	seen := map[string]bool{}
	for _, e := range merged {
		key := NormalizeSymbol(e.StockSymbol)
		assert.False(t, seen[key], "duplicate symbol %s", key)
		seen[key] = true
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	explicit := []models.WatchlistEntry{{ID: "1", StockSymbol: "SBIN"}}
	holdings := []models.HoldingRecord{{Name: "TCS", Avg: 100, Price: 90}, {Name: "sbin", Avg: 1, Price: 1}}

	assert.Equal(t, Merge(explicit, holdings), Merge(explicit, holdings))
}

func TestExplicitlyWatchlistingHoldingReplacesSynthetic(t *testing.T) {
	holdings := []models.HoldingRecord{{Name: "TCS", Avg: 100, Price: 120}, {Name: "INFY", Avg: 10, Price: 12}}

	before := Merge(nil, holdings)
	after := Merge([]models.WatchlistEntry{{ID: "w9", StockSymbol: "TCS"}}, holdings)

	assert.Len(t, after, len(before))
	synthetic := 0
	for _, e := range after {
		if e.IsHolding {
			synthetic++
		}
	}
	assert.Equal(t, 1, synthetic)
	assert.Equal(t, "w9", after[0].ID)
}

func TestFromHoldingZeroAverage(t *testing.T) {
	entry := FromHolding(models.HoldingRecord{Name: "new", Avg: 0, Price: 50}, 3)

	assert.Zero(t, entry.PercentChange)
	assert.InDelta(t, 50, entry.PriceChange, 1e-9)
	assert.Equal(t, "NEW", entry.StockSymbol)
	assert.Equal(t, "new", entry.StockName)
}

func TestMergeEmpty(t *testing.T) {
	merged := Merge(nil, nil)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestCanRemoveAndLabel(t *testing.T) {
	assert.False(t, CanRemove(models.WatchlistEntry{IsHolding: true}))
	assert.True(t, CanRemove(models.WatchlistEntry{}))
	assert.Equal(t, "Tata", Label(models.WatchlistEntry{StockSymbol: "TCS", StockName: "Tata"}))
	assert.Equal(t, "TCS", Label(models.WatchlistEntry{StockSymbol: "TCS"}))
}
