// Package models contains the domain models for the trading dashboard.
package models

import "time"

// User is the profile returned by the backend alongside a token.
type User struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Credential is the bearer token together with the profile it belongs to.
// User is nil when the token was injected without a login (URL bootstrap).
type Credential struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.Token != ""
}

// HoldingRecord is a stock already owned, as reported by the backend.
type HoldingRecord struct {
	Name   string  `json:"name"`
	Qty    float64 `json:"qty"`
	Avg    float64 `json:"avg"`
	Price  float64 `json:"price"`
	Net    string  `json:"net"`
	Day    string  `json:"day"`
	IsLoss bool    `json:"isLoss"`
}

// Lot returns the cost basis of the holding.
func (h HoldingRecord) Lot() Lot {
	return Lot{Avg: h.Avg, Price: h.Price, Qty: h.Qty}
}

// PositionRecord is an open trading position.
type PositionRecord struct {
	Product string  `json:"product"`
	Name    string  `json:"name"`
	Qty     float64 `json:"qty"`
	Avg     float64 `json:"avg"`
	Price   float64 `json:"price"`
	Net     string  `json:"net"`
	Day     string  `json:"day"`
	IsLoss  bool    `json:"isLoss"`
}

// Lot returns the cost basis of the position.
func (p PositionRecord) Lot() Lot {
	return Lot{Avg: p.Avg, Price: p.Price, Qty: p.Qty}
}

// Lot is the minimal cost-basis view shared by holdings and positions.
type Lot struct {
	Avg   float64
	Price float64
	Qty   float64
}

// OrderMode is the side of an order.
type OrderMode string

// Order modes.
const (
	OrderModeBuy  OrderMode = "BUY"
	OrderModeSell OrderMode = "SELL"
)

// OrderStatus is the server-side lifecycle state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderRecord is a placed order.
type OrderRecord struct {
	ID          string      `json:"_id,omitempty"`
	Name        string      `json:"name"`
	Qty         float64     `json:"qty"`
	Price       float64     `json:"price"`
	Mode        OrderMode   `json:"mode"`
	Status      OrderStatus `json:"status,omitempty"`
	ExecutedQty float64     `json:"executedQty,omitempty"`
}

// WatchlistEntry is a symbol tracked for price movement. Entries with
// IsHolding set are derived from holdings and exist only client-side.
type WatchlistEntry struct {
	ID            string  `json:"_id"`
	StockSymbol   string  `json:"stockSymbol"`
	StockName     string  `json:"stockName"`
	CurrentPrice  float64 `json:"currentPrice"`
	PriceChange   float64 `json:"priceChange"`
	PercentChange float64 `json:"percentChange"`
	IsHolding     bool    `json:"isHolding,omitempty"`
}

// DerivedTotals is the portfolio-level summary of a set of lots.
type DerivedTotals struct {
	TotalInvestment float64 `json:"totalInvestment"`
	CurrentValue    float64 `json:"currentValue"`
	TotalPnL        float64 `json:"totalPnL"`
	PnLPercent      float64 `json:"pnlPercent"`
}

// Severity classifies a toast.
type Severity string

// Toast severities.
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Toast is a short-lived user-facing notification.
// ExpiresAt is zero for toasts that persist until dismissed.
type Toast struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// SessionState is the state of the session guard.
type SessionState string

// Session guard states.
const (
	SessionVerifying       SessionState = "verifying"
	SessionAuthenticated   SessionState = "authenticated"
	SessionUnauthenticated SessionState = "unauthenticated"
)

// FetchLog records the outcome of one view fetch.
type FetchLog struct {
	ID           int64      `json:"id"`
	View         string     `json:"view"`
	Status       string     `json:"status"` // "started", "success", "error"
	Records      int        `json:"records"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
}
