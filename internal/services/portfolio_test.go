package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trade_dashboard/internal/models"
)

func TestRowPnL(t *testing.T) {
	tests := []struct {
		name       string
		avg        float64
		price      float64
		qty        float64
		wantPnL    float64
		wantPct    float64
		wantProfit bool
	}{
		{"gain", 100, 120, 10, 200, 20, true},
		{"loss", 200, 150, 4, -200, -25, false},
		{"flat", 50, 50, 3, 0, 0, true},
		{"zero quantity", 100, 120, 0, 0, 0, true},
		{"zero average", 0, 120, 5, 600, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.wantPnL, RowPnL(tc.avg, tc.price, tc.qty), 1e-9)
			assert.InDelta(t, tc.wantPct, RowPnLPercent(tc.avg, tc.price, tc.qty), 1e-9)
			assert.Equal(t, tc.wantProfit, IsProfit(RowPnL(tc.avg, tc.price, tc.qty)))
		})
	}
}

func TestRowPnLMatchesValueDifference(t *testing.T) {
	lots := []models.Lot{
		{Avg: 101.37, Price: 99.12, Qty: 17},
		{Avg: 0.5, Price: 1.75, Qty: 1200},
		{Avg: 3300, Price: 3312.4, Qty: 1},
	}
	for _, l := range lots {
		row := DeriveRow(l)
		assert.InDelta(t, row.CurrentValue-row.InvestedValue, row.PnL, 1e-9)
	}
}

func TestClassificationUsesUnroundedSign(t *testing.T) {
	pnl := RowPnL(100, 99.999, 1)

	assert.Equal(t, "0.00", Fixed2(pnl))
	assert.False(t, IsProfit(pnl), "a tiny loss must stay a loss after rounding")
}

func TestAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := Aggregate([]models.HoldingRecord{})
		assert.Equal(t, models.DerivedTotals{}, got)
	})

	t.Run("holdings", func(t *testing.T) {
		got := Aggregate([]models.HoldingRecord{
			{Name: "TCS", Qty: 10, Avg: 100, Price: 120},
			{Name: "INFY", Qty: 5, Avg: 200, Price: 180},
		})
		assert.InDelta(t, 2000, got.TotalInvestment, 1e-9)
		assert.InDelta(t, 2100, got.CurrentValue, 1e-9)
		assert.InDelta(t, 100, got.TotalPnL, 1e-9)
		assert.InDelta(t, 5, got.PnLPercent, 1e-9)
	})

	t.Run("positions with nothing invested", func(t *testing.T) {
		got := Aggregate([]models.PositionRecord{{Product: "CNC", Name: "X", Qty: 3, Avg: 0, Price: 10}})
		assert.InDelta(t, 30, got.TotalPnL, 1e-9)
		assert.Zero(t, got.PnLPercent)
	})
}

func TestMarginRequired(t *testing.T) {
	assert.InDelta(t, 200, MarginRequired(10, 100), 1e-9)
	assert.Zero(t, MarginRequired(0, 100))
	assert.Equal(t, "24.69", Fixed2(MarginRequired(3, 41.15)))
}

func TestFixed2(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{20, "20.00"},
		{-3.14159, "-3.14"},
		{1234.5, "1234.50"},
	}

	for _, tc := range tests {
		if got := Fixed2(tc.in); got != tc.want {
			t.Errorf("Fixed2(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatIndian(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{123456, "1,23,456"},
		{1234567.891, "12,34,567.89"},
		{100000.5, "1,00,000.5"},
		{-98765.4321, "-98,765.43"},
	}

	for _, tc := range tests {
		if got := FormatIndian(tc.in); got != tc.want {
			t.Errorf("FormatIndian(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "₹2,100", FormatRupees(2100))
}
