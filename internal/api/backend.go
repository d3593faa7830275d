package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/models"
)

// Backend paths.
const (
	PathVerify    = "/verify"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathHoldings  = "/allHoldings"
	PathPositions = "/allPositions"
	PathOrders    = "/allOrders"
	PathNewOrder  = "/newOrder"
	PathWatchlist = "/watchlist"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OrderRequest is the body of POST /newOrder.
type OrderRequest struct {
	Name  string           `json:"name"`
	Qty   int              `json:"qty"`
	Price float64          `json:"price"`
	Mode  models.OrderMode `json:"mode"`
}

// WatchlistRequest is the body of POST /watchlist.
type WatchlistRequest struct {
	StockSymbol   string  `json:"stockSymbol"`
	StockName     string  `json:"stockName"`
	CurrentPrice  float64 `json:"currentPrice"`
	PriceChange   float64 `json:"priceChange"`
	PercentChange float64 `json:"percentChange"`
}

// actionResponse is the envelope of mutating endpoints.
type actionResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Verify checks a token against the backend. It sends the given token
// rather than the one held by the token source.
func (c *Client) Verify(ctx context.Context, token string) Result {
	return c.execute(ctx, http.MethodGet, PathVerify, nil, token)
}

// Login exchanges a username and password for a credential.
func (c *Client) Login(ctx context.Context, req LoginRequest) (models.Credential, Result) {
	return c.authenticate(ctx, PathLogin, req)
}

// Signup registers a user and returns its credential.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (models.Credential, Result) {
	return c.authenticate(ctx, PathSignup, req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (models.Credential, Result) {
	res := c.execute(ctx, http.MethodPost, path, body, "")
	cred, err := Decode[models.Credential](res)
	if res.Success && (err != nil || !cred.Valid()) {
		res = c.invalid("unexpected response from server")
	}
	return cred, res
}

// Holdings fetches all holdings.
func (c *Client) Holdings(ctx context.Context) ([]models.HoldingRecord, Result) {
	return getList[models.HoldingRecord](ctx, c, PathHoldings)
}

// Positions fetches all open positions.
func (c *Client) Positions(ctx context.Context) ([]models.PositionRecord, Result) {
	return getList[models.PositionRecord](ctx, c, PathPositions)
}

// Orders fetches all orders.
func (c *Client) Orders(ctx context.Context) ([]models.OrderRecord, Result) {
	return getList[models.OrderRecord](ctx, c, PathOrders)
}

// Watchlist fetches the explicit watchlist entries.
func (c *Client) Watchlist(ctx context.Context) ([]models.WatchlistEntry, Result) {
	return getList[models.WatchlistEntry](ctx, c, PathWatchlist)
}

// PlaceOrder submits an order. A 2xx answer with success:false counts as
// a rejection.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) Result {
	return c.action(c.Post(ctx, PathNewOrder, req))
}

// AddWatchlist stores an explicit watchlist entry.
func (c *Client) AddWatchlist(ctx context.Context, req WatchlistRequest) Result {
	return c.action(c.Post(ctx, PathWatchlist, req))
}

// RemoveWatchlist deletes an explicit watchlist entry by id.
func (c *Client) RemoveWatchlist(ctx context.Context, id string) Result {
	return c.action(c.Delete(ctx, PathWatchlist+"/"+url.PathEscape(id)))
}

func (c *Client) action(res Result) Result {
	if !res.Success {
		return res
	}
	var body actionResponse
	if err := json.Unmarshal(res.Data, &body); err != nil {
		return res
	}
	if body.Success != nil && !*body.Success {
		rejected := Result{
			Data:       res.Data,
			Message:    body.Message,
			StatusCode: res.StatusCode,
			FromServer: body.Message != "",
			Kind:       apperrors.ErrRejected,
		}
		c.setError(body.Message)
		return rejected
	}
	return res
}

// invalid turns a 2xx answer that could not be used into a failure.
func (c *Client) invalid(msg string) Result {
	c.setError(msg)
	return Result{Message: msg, Kind: apperrors.ErrTransport}
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, Result) {
	res := c.Get(ctx, path)
	if !res.Success {
		return nil, res
	}
	items, err := Decode[[]T](res)
	if err != nil {
		return nil, c.invalid("unexpected response from server")
	}
	if items == nil {
		items = []T{}
	}
	return items, res
}
